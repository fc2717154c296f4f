package document

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const sampleDocumentXML = `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>The grace period is 30 days.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Claims must be filed </w:t></w:r><w:r><w:t>within 90 days.</w:t></w:r></w:p>
    <w:p></w:p>
  </w:body>
</w:document>`

func TestExtractDOCX(t *testing.T) {
	body := buildDOCX(t, sampleDocumentXML)

	segments, err := extractDOCX(body)

	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, "The grace period is 30 days.\nClaims must be filed within 90 days.", segments[0].Text)
	assert.Equal(t, "docx", segments[0].Metadata["document_type"])
}

func TestExtractDOCX_MissingDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("word/styles.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = extractDOCX(buf.Bytes())

	require.ErrorIs(t, err, ErrAcquisition)
	assert.Contains(t, err.Error(), "no document.xml")
}

func TestExtractDOCX_NotAZip(t *testing.T) {
	_, err := extractDOCX([]byte("plain bytes, not an archive"))

	assert.ErrorIs(t, err, ErrAcquisition)
}

func TestExtract_RoutesDOCXByContentType(t *testing.T) {
	body := buildDOCX(t, sampleDocumentXML)

	segments, err := Extract(body,
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"https://example.com/policy")

	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, "docx", segments[0].Metadata["document_type"])
}
