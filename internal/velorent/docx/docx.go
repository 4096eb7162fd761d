// Package docx fills {KEY} placeholders in Word templates.
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var (
	paragraphRe = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	textRe      = regexp.MustCompile(`(?s)(<w:t(?: [^>]*)?>)(.*?)</w:t>`)
	partRe      = regexp.MustCompile(`^word/(document|header\d*|footer\d*)\.xml$`)
)

var unescaper = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'", "&#39;", "'", "&#34;", `"`)

func escape(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// ReplaceXML substitutes placeholders paragraph by paragraph. Word often splits
// a placeholder over several runs, so the text of a changed paragraph is joined
// into its first run and the remaining runs are emptied.
func ReplaceXML(part []byte, values map[string]string) []byte {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	// longer keys first so that {DATE} never eats into {DATE_X}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })

	return paragraphRe.ReplaceAllFunc(part, func(p []byte) []byte {
		runs := textRe.FindAllSubmatchIndex(p, -1)
		if len(runs) == 0 {
			return p
		}

		var full strings.Builder
		for _, m := range runs {
			full.WriteString(unescaper.Replace(string(p[m[4]:m[5]])))
		}
		text := full.String()
		replaced := text
		for _, k := range keys {
			replaced = strings.ReplaceAll(replaced, "{"+k+"}", values[k])
		}
		if replaced == text {
			return p
		}

		var out bytes.Buffer
		last := 0
		for i, m := range runs {
			out.Write(p[last:m[0]])
			if i == 0 {
				out.WriteString(`<w:t xml:space="preserve">`)
				out.WriteString(escape(replaced))
			} else {
				out.Write(p[m[2]:m[3]])
			}
			out.WriteString("</w:t>")
			last = m[1]
		}
		out.Write(p[last:])
		return out.Bytes()
	})
}

// Render copies the template at templatePath to outPath with placeholders filled
// in the body, headers and footers. The output directory is created with 0700.
func Render(templatePath, outPath string, values map[string]string) error {
	src, err := zip.OpenReader(templatePath)
	if err != nil {
		return fmt.Errorf("open template: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(outPath), 0o700); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".contract-*.docx")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := rewrite(&src.Reader, tmp, values); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("chmod output: %w", err)
	}
	return os.Rename(tmp.Name(), outPath)
}

func rewrite(src *zip.Reader, w io.Writer, values map[string]string) error {
	dst := zip.NewWriter(w)
	for _, f := range src.File {
		if !partRe.MatchString(f.Name) {
			if err := dst.Copy(f); err != nil {
				return fmt.Errorf("copy %s: %w", f.Name, err)
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("read %s: %w", f.Name, err)
		}

		header := f.FileHeader
		out, err := dst.CreateHeader(&zip.FileHeader{
			Name:     header.Name,
			Method:   header.Method,
			Modified: header.Modified,
		})
		if err != nil {
			return fmt.Errorf("create %s: %w", f.Name, err)
		}
		if _, err := out.Write(ReplaceXML(data, values)); err != nil {
			return fmt.Errorf("write %s: %w", f.Name, err)
		}
	}
	return dst.Close()
}
