package storer

import "time"

type Record struct {
	Id        string
	Namespace string
	OwnerId   string
	Content   string
	Metadata  map[string]string
	Embedding []float32
	Score     float32
	CreatedAt time.Time
}
