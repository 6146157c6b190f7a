package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/Dosada05/pong-tournaments/models"
)

// BracketArchiver stores the final bracket of a completed tournament as a JSON object.
type BracketArchiver struct {
	uploader FileUploader
}

func NewBracketArchiver(uploader FileUploader) *BracketArchiver {
	return &BracketArchiver{uploader: uploader}
}

func BracketArchiveKey(tournamentID int) string {
	return fmt.Sprintf("tournaments/%d/bracket.json", tournamentID)
}

func (a *BracketArchiver) Archive(ctx context.Context, details *models.TournamentDetails) (*UploadResult, error) {
	if details == nil || details.Tournament == nil {
		return nil, fmt.Errorf("nothing to archive")
	}
	body, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("failed to encode bracket of tournament %d: %w", details.Tournament.ID, err)
	}
	return a.uploader.Upload(ctx, BracketArchiveKey(details.Tournament.ID), "application/json", bytes.NewReader(body))
}
