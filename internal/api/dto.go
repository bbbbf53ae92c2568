package api

import (
	"time"

	"github.com/samber/lo"

	"github.com/glintapp/glint/internal/models"
)

// imagePayload carries one image over the wire; Data is base64 in JSON.
type imagePayload struct {
	Key  string `json:"image_key"`
	Data []byte `json:"data,omitempty"`
}

// ItemResponse is the wire form of an item.
type ItemResponse struct {
	ID        int64          `json:"id"`
	Title     string         `json:"title"`
	Note      string         `json:"note"`
	Images    []imagePayload `json:"images"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func toItemResponse(item models.Item, includeData bool) ItemResponse {
	images := lo.Map(item.Images, func(img models.NoteImage, _ int) imagePayload {
		p := imagePayload{Key: img.Key}
		if includeData {
			p.Data = img.Bytes
		}
		return p
	})
	return ItemResponse{
		ID:        item.ID,
		Title:     item.Title,
		Note:      item.Note,
		Images:    images,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
}

func toNoteImages(payloads []imagePayload) []models.NoteImage {
	return lo.Map(payloads, func(p imagePayload, _ int) models.NoteImage {
		return models.NoteImage{Key: p.Key, Bytes: p.Data}
	})
}
