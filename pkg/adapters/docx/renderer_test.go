package docx_test

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aretw0/minutes/pkg/adapters/docx"
	"github.com/aretw0/minutes/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func documentXML(t *testing.T, data []byte) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(body)
	}
	t.Fatal("word/document.xml not found")
	return ""
}

func TestRender_Protocol(t *testing.T) {
	r := docx.New(docx.Config{}, docx.WithTempDir(t.TempDir()))
	md := domain.Metadata{
		ProtocolName:  "Kickoff",
		Date:          "2026-10-15",
		ProjectNumber: "P-17",
		ContractYear:  "2026",
		ProjectType:   "Interior",
		ObjectName:    "North office",
		ClientName:    "Globex",
	}

	out, err := r.Render(context.Background(), md, []string{"Who owns the budget?"}, []string{"Ship on Friday"})
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("PK")), "docx is a zip archive")

	body := documentXML(t, out)
	for _, want := range []string{
		"MEETING PROTOCOL",
		"Kickoff",
		"P-17",
		"North office",
		"KEY QUESTIONS",
		"1. Who owns the budget?",
		"DECISIONS MADE",
		"1. Ship on Friday",
		"Client representative (Globex)",
	} {
		assert.Contains(t, body, want)
	}
}

func TestRender_EmptySectionsAndLabels(t *testing.T) {
	cfg := docx.Config{Labels: docx.Labels{Title: "PROTOKOLL", EmptySectionMarker: "-"}}
	r := docx.New(cfg, docx.WithTempDir(t.TempDir()))

	out, err := r.Render(context.Background(), domain.Metadata{ProtocolName: "Review"}, nil, nil)
	require.NoError(t, err)

	body := documentXML(t, out)
	assert.Contains(t, body, "PROTOKOLL")
	assert.Contains(t, body, "KEY QUESTIONS", "unset labels keep their defaults")
}

func TestRender_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := docx.New(docx.Config{}).Render(ctx, domain.Metadata{}, nil, nil)
	assert.ErrorIs(t, err, domain.ErrRenderFailed)
}

func TestFileName(t *testing.T) {
	r := docx.New(docx.Config{})
	assert.Equal(t, "protocol_Kickoff_alpha.docx", r.FileName(domain.Metadata{ProtocolName: " Kickoff / alpha "}))
	assert.Equal(t, "protocol.docx", r.FileName(domain.Metadata{ProtocolName: "???"}))
}
