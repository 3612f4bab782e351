// loader.go: Load job documents (JSON or YAML) and .reel (ZIP) bundles.
package template

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xob0t/ReelStencil/internal/pkg/errors"
	"github.com/xob0t/ReelStencil/pkg/transform"
)

// BundleExt is the file extension of job bundles.
const BundleExt = ".reel"

// jobNames are the job documents looked up at the root of a bundle.
var jobNames = []string{"job.json", "job.yaml", "job.yml"}

// LoadJob reads a job document. YAML is used for .yaml/.yml files, JSON
// otherwise.
func LoadJob(path string) (*Job, error) {
	const op = "template.load_job"

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.FatalInput(op, err, "read job")
	}
	job, err := ParseJob(data, filepath.Ext(path))
	if err != nil {
		return nil, errors.Wrap(err, op, path)
	}
	return job, nil
}

// ParseJob decodes a job document. ext selects YAML (".yaml", ".yml") or
// JSON (anything else).
func ParseJob(data []byte, ext string) (*Job, error) {
	const op = "template.parse_job"

	var job Job
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &job); err != nil {
			return nil, errors.FatalInput(op, err, "invalid YAML job")
		}
	default:
		if err := json.Unmarshal(data, &job); err != nil {
			return nil, errors.FatalInput(op, err, "invalid JSON job")
		}
	}
	return &job, nil
}

// Resolve substitutes template variables into the overlay document, parses
// it and assigns ImagePaths. Warnings list every overlay dropped or
// adjusted on the way.
func (j *Job) Resolve(policy Policy) ([]Overlay, []Warning, error) {
	doc, err := decodeDocument(j.Overlays)
	if err != nil {
		return nil, nil, err
	}
	doc = SubstituteDocument(doc, j.TemplateVars, policy)

	overlays, warnings, err := ParseOverlays(doc)
	if err != nil {
		return nil, nil, err
	}
	if len(j.ImagePaths) > 0 || needsImages(overlays) {
		var more []Warning
		overlays, more = AssignImages(overlays, j.ImagePaths)
		warnings = append(warnings, more...)
	}
	return overlays, warnings, nil
}

func needsImages(overlays []Overlay) bool {
	for _, o := range overlays {
		if o.Image != nil && o.Image.Path == "" {
			return true
		}
	}
	return false
}

// decodeDocument turns a stringified overlay document into a decoded one.
func decodeDocument(doc any) (any, error) {
	s, ok := doc.(string)
	if !ok {
		return doc, nil
	}
	var decoded any
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		return nil, errors.FatalInput("template.parse", err, "overlay document is not valid JSON")
	}
	return decoded, nil
}

// LoadBundle opens a .reel ZIP, extracts it to a temp directory, reads the
// job document at its root and resolves relative asset paths against the
// extraction directory. The returned cleanup function removes the temp
// directory.
func LoadBundle(path string) (*Job, func(), error) {
	const op = "template.load_bundle"
	noop := func() {}

	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, noop, errors.FatalInput(op, err, "open "+path)
	}
	defer r.Close()

	tmpDir, err := os.MkdirTemp("", "reel-*")
	if err != nil {
		return nil, noop, errors.Wrap(err, op, "create temp dir")
	}
	cleanup := func() { os.RemoveAll(tmpDir) }

	if err := extractZip(r, tmpDir); err != nil {
		cleanup()
		return nil, noop, errors.FatalInput(op, err, "extract "+path)
	}

	var job *Job
	for _, name := range jobNames {
		p := filepath.Join(tmpDir, name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if job, err = LoadJob(p); err != nil {
			cleanup()
			return nil, noop, err
		}
		break
	}
	if job == nil {
		cleanup()
		return nil, noop, errors.FatalInput(op, nil, fmt.Sprintf("bundle has none of %s", strings.Join(jobNames, ", ")))
	}

	if job.Overlays, err = decodeDocument(job.Overlays); err != nil {
		cleanup()
		return nil, noop, err
	}
	resolveAssetPaths(job, tmpDir)
	return job, cleanup, nil
}

// resolveAssetPaths makes relative asset paths absolute using baseDir. The
// output path is left alone.
func resolveAssetPaths(job *Job, baseDir string) {
	job.VideoPath = resolvePath(job.VideoPath, baseDir)
	for i, p := range job.ImagePaths {
		job.ImagePaths[i] = resolvePath(p, baseDir)
	}
	job.Overlays = resolveDocPaths(job.Overlays, baseDir)
}

func resolvePath(p, baseDir string) string {
	if p == "" || p == transform.WhiteFrame || filepath.IsAbs(p) || strings.Contains(p, "${") {
		return p
	}
	return filepath.Join(baseDir, p)
}

// resolveDocPaths rewrites image_path, image_paths and font values found
// anywhere in a decoded overlay document.
func resolveDocPaths(doc any, baseDir string) any {
	switch v := doc.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			switch k {
			case "image_path", "font":
				if s, ok := item.(string); ok {
					out[k] = resolvePath(s, baseDir)
					continue
				}
			case "image_paths":
				if list, ok := item.([]any); ok {
					paths := make([]any, len(list))
					for i, p := range list {
						if s, ok := p.(string); ok {
							paths[i] = resolvePath(s, baseDir)
						} else {
							paths[i] = p
						}
					}
					out[k] = paths
					continue
				}
			}
			out[k] = resolveDocPaths(item, baseDir)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = resolveDocPaths(item, baseDir)
		}
		return out
	default:
		return v
	}
}

// extractZip extracts all files from a zip reader into destDir.
func extractZip(r *zip.ReadCloser, destDir string) error {
	for _, f := range r.File {
		target := filepath.Join(destDir, f.Name)

		// Guard against zip slip.
		if !strings.HasPrefix(filepath.Clean(target), filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("illegal path in zip: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

// extractFile writes a single zip entry to disk.
func extractFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
