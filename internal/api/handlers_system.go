package api

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/opencabin/caraudio-go/internal/maintenance"
)

func (h *Handlers) getInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.GetInfo())
}

// reload re-runs the topology load, picking up a rewritten topology file.
func (h *Handlers) reload(w http.ResponseWriter, r *http.Request) {
	state, appErr := h.ctrl.Reload(r.Context())
	if appErr != nil {
		writeError(w, appErr)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// getTemps reports the amp board temperatures from the HAL register file.
func (h *Handlers) getTemps(w http.ResponseWriter, r *http.Request) {
	temps, ok, err := h.ctrl.Temps(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{"available": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"available": true,
		"temps":     temps,
	})
}

// loginPage renders a simple login HTML page.
func (h *Handlers) loginPage(w http.ResponseWriter, r *http.Request) {
	next := r.URL.Query().Get("next")
	if next == "" {
		next = "/api"
	}
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Car Audio Login</title></head>
<body>
<h2>Car Audio Login</h2>
<form method="POST" action="/auth/login">
  <input type="hidden" name="next" value="` + next + `">
  <label>Password: <input type="password" name="password"></label>
  <button type="submit">Login</button>
</form>
</body>
</html>`))
}

// loginPost handles login form submission.
// TODO: implement proper credential verification with argon2.
func (h *Handlers) loginPost(w http.ResponseWriter, r *http.Request) {
	// For now, redirect to requested URL (auth service handles actual verification).
	next := r.FormValue("next")
	if next == "" {
		next = "/api"
	}
	http.Redirect(w, r, next, http.StatusFound)
}

// createBackup triggers an immediate config backup and returns the file path.
func (h *Handlers) createBackup(w http.ResponseWriter, r *http.Request) {
	svc := maintenance.New("", nil, nil)
	file, err := svc.RunBackupNow()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"file": file,
	})
}

// listBackups returns a list of available backup files.
func (h *Handlers) listBackups(w http.ResponseWriter, r *http.Request) {
	files, err := maintenance.ListBackups()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"backups": files,
	})
}

// restoreBackup accepts a multipart file upload, extracts it to ~/.config/caraudio/.
func (h *Handlers) restoreBackup(w http.ResponseWriter, r *http.Request) {
	// Limit upload size to 100 MB
	if err := r.ParseMultipartForm(100 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "failed to parse multipart form: " + err.Error(),
		})
		return
	}

	file, header, err := r.FormFile("backup")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "missing backup file in form field 'backup': " + err.Error(),
		})
		return
	}
	defer file.Close()

	if !strings.HasSuffix(header.Filename, ".tar.gz") {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "backup file must be a .tar.gz archive",
		})
		return
	}

	// Save the upload to a temp file for extraction
	tmp, err := os.CreateTemp("", "caraudio-restore-*.tar.gz")
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to create temp file: " + err.Error(),
		})
		return
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, file); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to save uploaded file: " + err.Error(),
		})
		return
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "seek failed: " + err.Error(),
		})
		return
	}

	// Determine destination directory
	home, err := os.UserHomeDir()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "cannot determine home directory: " + err.Error(),
		})
		return
	}
	destDir := filepath.Join(home, ".config", "caraudio")

	if err := extractTarGz(tmp, destDir); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "extraction failed: " + err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"details": fmt.Sprintf("restored to %s at %s", destDir, time.Now().Format(time.RFC3339)),
	})
}

// extractTarGz extracts a .tar.gz archive from r into destDir, preserving
// the relative layout the backup archiver wrote. Entries that would escape
// destDir (absolute paths, ".." components) are skipped.
func extractTarGz(r io.Reader, destDir string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("gzip: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("tar: %w", err)
		}

		name := filepath.Clean(filepath.FromSlash(hdr.Name))
		if filepath.IsAbs(name) || name == ".." || strings.HasPrefix(name, ".."+string(filepath.Separator)) {
			continue
		}
		dest := filepath.Join(destDir, name)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
				return err
			}
			f, err := os.Create(dest)
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return err
			}
			f.Close()
		}
	}
	return nil
}
