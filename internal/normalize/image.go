package normalize

import (
	"errors"
)

// ImageRecord is the part of an image inspection the comparators need.
type ImageRecord struct {
	ID     string
	Env    []string
	Labels map[string]string
}

type imageInspect struct {
	ID     string `json:"Id"`
	Config *struct {
		Env    []string          `json:"Env"`
		Labels map[string]string `json:"Labels"`
	} `json:"Config"`
}

// ParseImageInspect reads the canonical id and the baseline configuration
// from an image inspection.
func ParseImageInspect(out []byte) (*ImageRecord, error) {
	rec, err := decodeSingle[imageInspect](out)
	if err != nil {
		return nil, err
	}
	if rec.ID == "" {
		return nil, errors.New("image record has no Id")
	}

	img := &ImageRecord{ID: rec.ID}
	if rec.Config != nil {
		img.Env = rec.Config.Env
		img.Labels = rec.Config.Labels
	}
	return img, nil
}
