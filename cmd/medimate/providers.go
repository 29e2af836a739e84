package main

import (
	"fmt"

	"github.com/w-h-a/medimate/cache"
	localcache "github.com/w-h-a/medimate/cache/local"
	rediscache "github.com/w-h-a/medimate/cache/redis"
	"github.com/w-h-a/medimate/embedder"
	googleembedder "github.com/w-h-a/medimate/embedder/google"
	"github.com/w-h-a/medimate/embedder/hash"
	openaiembedder "github.com/w-h-a/medimate/embedder/openai"
	"github.com/w-h-a/medimate/extractor"
	httpextractor "github.com/w-h-a/medimate/extractor/http"
	jsonextractor "github.com/w-h-a/medimate/extractor/json"
	"github.com/w-h-a/medimate/generator"
	anthropicgenerator "github.com/w-h-a/medimate/generator/anthropic"
	googlegenerator "github.com/w-h-a/medimate/generator/google"
	openaigenerator "github.com/w-h-a/medimate/generator/openai"
	"github.com/w-h-a/medimate/generator/vertex"
	"github.com/w-h-a/medimate/memory"
	"github.com/w-h-a/medimate/memory/local"
	mongostore "github.com/w-h-a/medimate/memory/mongo"
	postgresstore "github.com/w-h-a/medimate/memory/postgres"
	"github.com/w-h-a/medimate/storer"
	memorystorer "github.com/w-h-a/medimate/storer/memory"
	postgresstorer "github.com/w-h-a/medimate/storer/postgres"
	"github.com/w-h-a/medimate/storer/qdrant"
	vectorstore "github.com/w-h-a/medimate/vector_store"
)

type Providers struct {
	Generator         string  `help:"Generator provider (openai, anthropic, google, vertex)" default:"openai" env:"MEDIMATE_GENERATOR"`
	GeneratorKey      string  `help:"API key for the generator" default:"" env:"MEDIMATE_GENERATOR_KEY"`
	GeneratorModel    string  `help:"Model identifier for the generator" default:"gpt-4o-mini" env:"MEDIMATE_GENERATOR_MODEL"`
	Temperature       float32 `help:"Sampling temperature" default:"0.2" env:"MEDIMATE_TEMPERATURE"`
	VertexProject     string  `help:"Google Cloud project for vertex" default:"" env:"MEDIMATE_VERTEX_PROJECT"`
	VertexLocation    string  `help:"Google Cloud region for vertex" default:"us-central1" env:"MEDIMATE_VERTEX_LOCATION"`
	Embedder          string  `help:"Embedder provider (openai, google, hash)" default:"hash" env:"MEDIMATE_EMBEDDER"`
	EmbedderKey       string  `help:"API key for the embedder" default:"" env:"MEDIMATE_EMBEDDER_KEY"`
	EmbedderModel     string  `help:"Model identifier for the embedder" default:"text-embedding-3-small" env:"MEDIMATE_EMBEDDER_MODEL"`
	Storer            string  `help:"Vector storer (memory, postgres, qdrant)" default:"memory" env:"MEDIMATE_STORER"`
	StorerLocation    string  `help:"Address of the vector storer" default:"" env:"MEDIMATE_STORER_LOCATION"`
	StorerKey         string  `help:"API key for the vector storer" default:"" env:"MEDIMATE_STORER_KEY"`
	Collection        string  `help:"Vector collection name" default:"medimate" env:"MEDIMATE_COLLECTION"`
	VectorSize        int     `help:"Vector dimensions" default:"256" env:"MEDIMATE_VECTOR_SIZE"`
	Memory            string  `help:"Record store (local, mongo, postgres)" default:"local" env:"MEDIMATE_MEMORY"`
	MemoryLocation    string  `help:"Address of the record store" default:"" env:"MEDIMATE_MEMORY_LOCATION"`
	MemoryDatabase    string  `help:"Database name of the record store" default:"medimate" env:"MEDIMATE_MEMORY_DATABASE"`
	Cache             string  `help:"Safety report cache (none, local, redis)" default:"local" env:"MEDIMATE_CACHE"`
	CacheLocation     string  `help:"Address of the cache" default:"" env:"MEDIMATE_CACHE_LOCATION"`
	Extractor         string  `help:"Prescription extractor (json, http)" default:"json" env:"MEDIMATE_EXTRACTOR"`
	ExtractorLocation string  `help:"Address of the extraction service" default:"" env:"MEDIMATE_EXTRACTOR_LOCATION"`
	ExtractorKey      string  `help:"API key for the extraction service" default:"" env:"MEDIMATE_EXTRACTOR_KEY"`
}

func (p Providers) generator() (generator.Generator, error) {
	opts := []generator.Option{
		generator.WithApiKey(p.GeneratorKey),
		generator.WithModel(p.GeneratorModel),
		generator.WithTemperature(p.Temperature),
	}

	switch p.Generator {
	case "openai":
		return openaigenerator.NewGenerator(opts...), nil
	case "anthropic":
		return anthropicgenerator.NewGenerator(opts...), nil
	case "google":
		return googlegenerator.NewGenerator(opts...), nil
	case "vertex":
		opts = append(opts, vertex.WithProject(p.VertexProject), vertex.WithLocation(p.VertexLocation))
		return vertex.NewGenerator(opts...), nil
	default:
		return nil, fmt.Errorf("unknown generator %q", p.Generator)
	}
}

func (p Providers) embedder() (embedder.Embedder, error) {
	opts := []embedder.Option{
		embedder.WithApiKey(p.EmbedderKey),
		embedder.WithModel(p.EmbedderModel),
	}

	switch p.Embedder {
	case "openai":
		return openaiembedder.NewEmbedder(opts...), nil
	case "google":
		return googleembedder.NewEmbedder(opts...), nil
	case "hash":
		return hash.NewEmbedder(hash.WithDimensions(p.VectorSize)), nil
	default:
		return nil, fmt.Errorf("unknown embedder %q", p.Embedder)
	}
}

func (p Providers) storer() (storer.Storer, error) {
	opts := []storer.Option{
		storer.WithLocation(p.StorerLocation),
		storer.WithCollection(p.Collection),
		storer.WithApiKey(p.StorerKey),
		storer.WithVectorSize(p.VectorSize),
	}

	switch p.Storer {
	case "memory":
		return memorystorer.NewStorer(opts...), nil
	case "postgres":
		return postgresstorer.NewStorer(opts...), nil
	case "qdrant":
		return qdrant.NewStorer(opts...), nil
	default:
		return nil, fmt.Errorf("unknown storer %q", p.Storer)
	}
}

func (p Providers) memory() (memory.Store, error) {
	opts := []memory.Option{
		memory.WithLocation(p.MemoryLocation),
		memory.WithDatabase(p.MemoryDatabase),
	}

	switch p.Memory {
	case "local":
		return local.NewStore(opts...), nil
	case "mongo":
		return mongostore.NewStore(opts...), nil
	case "postgres":
		return postgresstore.NewStore(opts...), nil
	default:
		return nil, fmt.Errorf("unknown memory %q", p.Memory)
	}
}

func (p Providers) cache() (cache.Cache, error) {
	switch p.Cache {
	case "none", "":
		return nil, nil
	case "local":
		return localcache.NewCache(), nil
	case "redis":
		return rediscache.NewCache(cache.WithLocation(p.CacheLocation)), nil
	default:
		return nil, fmt.Errorf("unknown cache %q", p.Cache)
	}
}

func (p Providers) extractor() (extractor.Extractor, error) {
	switch p.Extractor {
	case "json":
		return jsonextractor.NewExtractor(), nil
	case "http":
		return httpextractor.NewExtractor(
			extractor.WithLocation(p.ExtractorLocation),
			extractor.WithApiKey(p.ExtractorKey),
		), nil
	default:
		return nil, fmt.Errorf("unknown extractor %q", p.Extractor)
	}
}

func (p Providers) vectors() (*vectorstore.VectorStore, error) {
	s, err := p.storer()
	if err != nil {
		return nil, err
	}

	e, err := p.embedder()
	if err != nil {
		return nil, err
	}

	return vectorstore.New(
		vectorstore.WithStorer(s),
		vectorstore.WithEmbedder(e),
	), nil
}
