package persistence

import (
	"fmt"
	"time"

	"github.com/relicta-tech/bitsmith/internal/domain/artifact"
	"github.com/relicta-tech/bitsmith/internal/domain/component"
	"github.com/relicta-tech/bitsmith/internal/domain/tag"
)

// recordDTO is a data transfer object for serializing tag records.
type recordDTO struct {
	Version     string `json:"version"`
	Message     string `json:"message,omitempty"`
	ContentHash string `json:"content_hash,omitempty"`
	Commit      string `json:"commit,omitempty"`
	RunID       string `json:"run_id,omitempty"`
	AutoTagged  bool   `json:"auto_tagged,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type componentRecordsDTO struct {
	Component string      `json:"component"`
	Records   []recordDTO `json:"records"`
}

type softTagDTO struct {
	Component       string   `json:"component"`
	Version         string   `json:"version"`
	PreviousVersion string   `json:"previous_version,omitempty"`
	Message         string   `json:"message,omitempty"`
	IsNew           bool     `json:"is_new,omitempty"`
	AutoTaggedBy    []string `json:"auto_tagged_by,omitempty"`
	RunID           string   `json:"run_id,omitempty"`
	CreatedAt       string   `json:"created_at"`
}

type softTagsDTO struct {
	SoftTags []softTagDTO `json:"soft_tags"`
}

type artifactDTO struct {
	Aspect string   `json:"aspect"`
	Task   string   `json:"task"`
	Root   string   `json:"root"`
	Files  []string `json:"files"`
}

type componentArtifactsDTO struct {
	Component string        `json:"component"`
	Artifacts []artifactDTO `json:"artifacts"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func toRecordDTO(rec tag.Record) recordDTO {
	return recordDTO{
		Version:     rec.Version,
		Message:     rec.Message,
		ContentHash: rec.ContentHash,
		Commit:      rec.Commit,
		RunID:       rec.RunID,
		AutoTagged:  rec.AutoTagged,
		CreatedAt:   formatTime(rec.CreatedAt),
	}
}

func fromRecordDTO(id component.ID, dto recordDTO) tag.Record {
	return tag.Record{
		Component:   id,
		Version:     dto.Version,
		Message:     dto.Message,
		ContentHash: dto.ContentHash,
		Commit:      dto.Commit,
		RunID:       dto.RunID,
		AutoTagged:  dto.AutoTagged,
		CreatedAt:   parseTime(dto.CreatedAt),
	}
}

func toSoftTagDTO(rec tag.SoftTagRecord) softTagDTO {
	dto := softTagDTO{
		Component:       rec.Component.WithoutVersion().String(),
		Version:         rec.Version,
		PreviousVersion: rec.PreviousVersion,
		Message:         rec.Message,
		IsNew:           rec.IsNew,
		RunID:           rec.RunID,
		CreatedAt:       formatTime(rec.CreatedAt),
	}
	for _, by := range rec.AutoTaggedBy {
		dto.AutoTaggedBy = append(dto.AutoTaggedBy, by.WithoutVersion().String())
	}
	return dto
}

func fromSoftTagDTO(dto softTagDTO) (tag.SoftTagRecord, error) {
	id, err := component.ParseID(dto.Component)
	if err != nil {
		return tag.SoftTagRecord{}, fmt.Errorf("invalid soft tag component %q: %w", dto.Component, err)
	}
	rec := tag.SoftTagRecord{
		Component:       id,
		Version:         dto.Version,
		PreviousVersion: dto.PreviousVersion,
		Message:         dto.Message,
		IsNew:           dto.IsNew,
		RunID:           dto.RunID,
		CreatedAt:       parseTime(dto.CreatedAt),
	}
	for _, s := range dto.AutoTaggedBy {
		by, err := component.ParseID(s)
		if err != nil {
			return tag.SoftTagRecord{}, fmt.Errorf("invalid soft tag trigger %q: %w", s, err)
		}
		rec.AutoTaggedBy = append(rec.AutoTaggedBy, by)
	}
	return rec, nil
}

func toArtifactDTO(a artifact.Artifact) artifactDTO {
	return artifactDTO{Aspect: a.Aspect, Task: a.Task, Root: a.Root, Files: a.Files}
}

func fromArtifactDTO(id component.ID, dto artifactDTO) artifact.Artifact {
	return artifact.Artifact{Component: id, Aspect: dto.Aspect, Task: dto.Task, Root: dto.Root, Files: dto.Files}
}
