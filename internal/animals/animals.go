/*
Package animals implements the animal selection and file upload service.
Selections and upload metadata live in the JSON document managed by the
database package; uploaded bytes are written to a flat uploads directory.
*/
package animals

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"FuelLab_V2.0/internal/database"
	"FuelLab_V2.0/internal/utility"
	"github.com/labstack/echo/v4"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// isoTimestamp matches the microsecond ISO-8601 layout already present in data files.
const isoTimestamp = "2006-01-02T15:04:05.000000"

// ValidAnimals lists the selections the service accepts.
var ValidAnimals = []string{"cat", "dog", "elephant"}

/* =================================================================================
							DTOs (Data Transfer Objects)
=================================================================================*/

// SelectionRequest is the body of POST /animal/select.
type SelectionRequest struct {
	Animal    string  `json:"animal"`
	Timestamp *string `json:"timestamp,omitempty"`
}

// FileInfoResponse is the public view of an uploaded file.
type FileInfoResponse struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// StatsResponse summarizes everything stored so far.
type StatsResponse struct {
	TotalAnimalSelections int            `json:"total_animal_selections"`
	AnimalBreakdown       map[string]int `json:"animal_breakdown"`
	TotalFilesUploaded    int            `json:"total_files_uploaded"`
	TotalFileSizeBytes    int64          `json:"total_file_size_bytes"`
}

// Handler serves the animal and file endpoints.
type Handler struct {
	db         database.Service
	uploadsDir string
	indexFile  string
	now        func() time.Time
}

// NewHandler creates the uploads directory if needed.
func NewHandler(db database.Service, uploadsDir, indexFile string) (*Handler, error) {
	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}
	return &Handler{db: db, uploadsDir: uploadsDir, indexFile: indexFile, now: time.Now}, nil
}

func detail(msg string) map[string]string {
	return map[string]string{"detail": msg}
}

/*=================================================================================
									HANDLERS
=================================================================================*/

// IndexHandler serves the frontend page.
func (h *Handler) IndexHandler(c echo.Context) error {
	return c.File(h.indexFile)
}

// APIRootHandler reports that the service is up.
func (h *Handler) APIRootHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"message": "Animal & File API is running"})
}

// HealthHandler reports the data file status.
func (h *Handler) HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, h.db.Health())
}

// SelectAnimalHandler records a new animal selection.
func (h *Handler) SelectAnimalHandler(c echo.Context) error {
	logger := utility.GetLogger(c)

	var req SelectionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, detail("Invalid request body"))
	}

	if !isValidAnimal(req.Animal) {
		return c.JSON(http.StatusBadRequest, detail("Invalid animal selection"))
	}

	// The server clock is authoritative; a client supplied timestamp is ignored.
	record := database.AnimalSelection{
		Animal:    req.Animal,
		Timestamp: h.now().Format(isoTimestamp),
	}

	err := h.db.Update(func(d *database.Data) error {
		d.Animals = append(d.Animals, record)
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to save animal selection")
		return c.JSON(http.StatusInternalServerError, detail("Failed to save selection"))
	}

	logger.Info().Str("animal", record.Animal).Msg("Animal selected")
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": fmt.Sprintf("%s selected successfully", cases.Title(language.Und).String(record.Animal)),
		"data":    record,
	})
}

// AnimalHistoryHandler lists every recorded selection.
func (h *Handler) AnimalHistoryHandler(c echo.Context) error {
	data, err := h.db.Load()
	if err != nil {
		utility.GetLogger(c).Error().Err(err).Msg("Failed to load animal history")
		return c.JSON(http.StatusInternalServerError, detail("Failed to load history"))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"history": data.Animals})
}

// UploadFileHandler stores the multipart "file" field in the uploads directory.
func (h *Handler) UploadFileHandler(c echo.Context) error {
	logger := utility.GetLogger(c)

	fh, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return c.JSON(http.StatusBadRequest, detail("No file selected"))
		}
		return c.JSON(http.StatusUnprocessableEntity, detail("Invalid multipart form"))
	}
	if fh.Filename == "" {
		return c.JSON(http.StatusBadRequest, detail("No file selected"))
	}

	name, err := utility.SafeFilename(fh.Filename)
	if err != nil {
		return c.JSON(http.StatusBadRequest, detail("Invalid filename"))
	}

	src, err := fh.Open()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open uploaded file")
		return c.JSON(http.StatusInternalServerError, detail("Failed to read upload"))
	}
	defer src.Close()

	path := filepath.Join(h.uploadsDir, name)
	size, err := writeFile(path, src)
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("Failed to store uploaded file")
		return c.JSON(http.StatusInternalServerError, detail("Failed to store file"))
	}

	contentType := fh.Header.Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = "unknown"
	}

	record := database.FileRecord{
		Filename:    name,
		Size:        size,
		ContentType: contentType,
		Timestamp:   h.now().Format(isoTimestamp),
		Path:        path,
	}
	err = h.db.Update(func(d *database.Data) error {
		d.Files = append(d.Files, record)
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to save file record")
		return c.JSON(http.StatusInternalServerError, detail("Failed to save file record"))
	}

	logger.Info().Str("filename", name).Int64("size", size).Msg("File uploaded")
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "File uploaded successfully",
		"file_info": FileInfoResponse{
			Name:      record.Filename,
			Size:      record.Size,
			Type:      record.ContentType,
			Timestamp: record.Timestamp,
		},
	})
}

// FileHistoryHandler lists every recorded upload.
func (h *Handler) FileHistoryHandler(c echo.Context) error {
	data, err := h.db.Load()
	if err != nil {
		utility.GetLogger(c).Error().Err(err).Msg("Failed to load file history")
		return c.JSON(http.StatusInternalServerError, detail("Failed to load history"))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"history": data.Files})
}

// DeleteFileHandler removes an uploaded file and every record pointing at it.
func (h *Handler) DeleteFileHandler(c echo.Context) error {
	logger := utility.GetLogger(c)

	name, err := utility.SafeFilename(c.Param("filename"))
	if err != nil {
		return c.JSON(http.StatusNotFound, detail("File not found"))
	}

	path := filepath.Join(h.uploadsDir, name)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c.JSON(http.StatusNotFound, detail("File not found"))
		}
		logger.Error().Err(err).Str("path", path).Msg("Failed to delete file")
		return c.JSON(http.StatusInternalServerError, detail("Failed to delete file"))
	}

	err = h.db.Update(func(d *database.Data) error {
		kept := d.Files[:0]
		for _, f := range d.Files {
			if f.Filename != name {
				kept = append(kept, f)
			}
		}
		d.Files = kept
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to remove file records")
		return c.JSON(http.StatusInternalServerError, detail("Failed to update file records"))
	}

	return c.JSON(http.StatusOK, map[string]string{"message": fmt.Sprintf("File %s deleted successfully", name)})
}

// StatsHandler aggregates selections per animal and total upload size.
func (h *Handler) StatsHandler(c echo.Context) error {
	data, err := h.db.Load()
	if err != nil {
		utility.GetLogger(c).Error().Err(err).Msg("Failed to load stats")
		return c.JSON(http.StatusInternalServerError, detail("Failed to load stats"))
	}
	return c.JSON(http.StatusOK, computeStats(data))
}

func computeStats(data database.Data) StatsResponse {
	stats := StatsResponse{
		TotalAnimalSelections: len(data.Animals),
		AnimalBreakdown:       make(map[string]int),
		TotalFilesUploaded:    len(data.Files),
	}
	for _, a := range data.Animals {
		stats.AnimalBreakdown[a.Animal]++
	}
	for _, f := range data.Files {
		stats.TotalFileSizeBytes += f.Size
	}
	return stats
}

func isValidAnimal(animal string) bool {
	for _, a := range ValidAnimals {
		if a == animal {
			return true
		}
	}
	return false
}

func writeFile(path string, src io.Reader) (int64, error) {
	dst, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	return n, err
}
