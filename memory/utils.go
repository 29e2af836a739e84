package memory

import "context"

// OpenSession returns the user's session for a prescription they uploaded,
// creating it with the prescription's title, filename and summary on first
// use. A prescription owned by another user reads as ErrNotFound.
func OpenSession(ctx context.Context, store Store, userId string, prescriptionId string) (string, error) {
	rx, err := store.GetPrescription(ctx, prescriptionId)
	if err != nil {
		return "", err
	}

	if rx.UserId != userId {
		return "", ErrNotFound
	}

	return store.GetOrCreateSession(
		ctx,
		userId,
		prescriptionId,
		WithTitle(rx.Title),
		WithFilename(rx.Filename),
		WithDetails(rx.Extraction.Summary()),
	)
}

// Recent returns the last n turns, oldest first. n <= 0 returns all of them.
func Recent(turns []Turn, n int) []Turn {
	if n <= 0 || len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}

// ValidReferenceDrugs reports whether every drug carries metadata. Lists
// written before metadata existed fail the check.
func ValidReferenceDrugs(drugs []ReferenceDrug) bool {
	for _, d := range drugs {
		if len(d.Metadata) == 0 {
			return false
		}
	}
	return true
}
