package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"clubhub/internal/audit"
	"clubhub/internal/csvimport"
)

// maxImportBytes bounds uploaded roster files.
const maxImportBytes = 2 << 20

// readImportBody accepts a multipart "file" field or a raw text/csv body.
func readImportBody(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("%w: multipart field \"file\" is required", ErrInvalid)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(f)
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: file larger than %d bytes", ErrInvalid, maxImportBytes)
		}
		return nil, err
	}
	return body, nil
}

func (d *Deps) previewImport(c *gin.Context) (*csvimport.Preview, bool) {
	body, err := readImportBody(c)
	if err != nil {
		d.respond(c, err)
		return nil, false
	}
	dir, err := csvimport.LoadDirectory(c, d.DB)
	if err != nil {
		d.respond(c, err)
		return nil, false
	}
	preview, err := csvimport.Parse(bytes.NewReader(body), dir, d.now())
	if err != nil {
		d.respond(c, err)
		return nil, false
	}
	return preview, true
}

// PreviewRiderImport validates a roster file without writing anything.
func PreviewRiderImport(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		preview, ok := d.previewImport(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, preview)
	}
}

// CommitRiderImport re-validates the file and imports its valid rows; ?strict=true imports all or nothing.
func CommitRiderImport(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		strict, _ := strconv.ParseBool(c.Query("strict"))

		preview, ok := d.previewImport(c)
		if !ok {
			return
		}

		res, err := csvimport.Commit(c, d.DB, preview, strict)
		if errors.Is(err, csvimport.ErrRejected) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   err.Error(),
				"preview": preview,
			})
			return
		}
		if err != nil {
			d.respond(c, err)
			return
		}

		d.record(c, audit.Entry{
			Action: "riders.import", ResourceType: "rider",
			Metadata: map[string]interface{}{
				"created":       res.Created,
				"skipped":       res.Skipped,
				"parent_links":  res.ParentLinks,
				"pending_links": res.PendingLinks,
				"strict":        strict,
			},
		})
		c.JSON(http.StatusOK, gin.H{
			"result":  res,
			"summary": preview.Summary,
			"rows":    preview.Rows,
		})
	}
}
