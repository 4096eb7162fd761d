package docx

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const body = `<w:document><w:body>` +
	`<w:p><w:r><w:t>Договор № {№_дог</w:t></w:r><w:r><w:t>овора}</w:t></w:r></w:p>` +
	`<w:p><w:pPr/><w:r><w:t xml:space="preserve">Клиент: {FULL_NAME} </w:t></w:r></w:p>` +
	`<w:p><w:r><w:t>{UNKNOWN}</w:t></w:r></w:p>` +
	`</w:body></w:document>`

func TestReplaceXML(t *testing.T) {
	out := string(ReplaceXML([]byte(body), map[string]string{
		"№_договора": "7.12.1",
		"FULL_NAME":  "Ivan <Petrov>",
	}))

	assert.Contains(t, out, `<w:t xml:space="preserve">Договор № 7.12.1</w:t>`)
	assert.Contains(t, out, `<w:r><w:t></w:t></w:r>`)
	assert.Contains(t, out, "Клиент: Ivan &lt;Petrov&gt; ")
	assert.Contains(t, out, "<w:pPr/>")
	assert.Contains(t, out, "<w:t>{UNKNOWN}</w:t>")
}

func TestReplaceXMLPrefersLongerKeys(t *testing.T) {
	in := `<w:p><w:r><w:t>{DATE} / {DATE_END}</w:t></w:r></w:p>`
	out := string(ReplaceXML([]byte(in), map[string]string{
		"DATE":     "01.01.2025",
		"DATE_END": "29.01.2025",
	}))
	assert.Contains(t, out, "01.01.2025 / 29.01.2025")
}

func writeTemplate(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func readPart(t *testing.T, path, name string) string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(data)
	}
	t.Fatalf("part %s not found", name)
	return ""
}

func TestRender(t *testing.T) {
	dir := t.TempDir()
	tpl := filepath.Join(dir, "template.docx")
	writeTemplate(t, tpl, map[string]string{
		"[Content_Types].xml": "<Types/>",
		"word/document.xml":   `<w:p><w:r><w:t>{CITY}</w:t></w:r></w:p>`,
		"word/header1.xml":    `<w:p><w:r><w:t>{DATE}</w:t></w:r></w:p>`,
		"word/footer2.xml":    `<w:p><w:r><w:t>{EMAIL}</w:t></w:r></w:p>`,
		"word/styles.xml":     `<w:p><w:r><w:t>{CITY}</w:t></w:r></w:p>`,
	})

	out := filepath.Join(dir, "generated_contracts", "contract.docx")
	err := Render(tpl, out, map[string]string{
		"CITY":  "Великий Новгород",
		"DATE":  "01.02.2025",
		"EMAIL": "a@example.com",
	})
	require.NoError(t, err)

	assert.Contains(t, readPart(t, out, "word/document.xml"), "Великий Новгород")
	assert.Contains(t, readPart(t, out, "word/header1.xml"), "01.02.2025")
	assert.Contains(t, readPart(t, out, "word/footer2.xml"), "a@example.com")
	assert.Contains(t, readPart(t, out, "word/styles.xml"), "{CITY}")
	assert.Equal(t, "<Types/>", readPart(t, out, "[Content_Types].xml"))

	info, err := os.Stat(filepath.Dir(out))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}

func TestRenderMissingTemplate(t *testing.T) {
	err := Render(filepath.Join(t.TempDir(), "missing.docx"), filepath.Join(t.TempDir(), "out.docx"), nil)
	assert.Error(t, err)
}
