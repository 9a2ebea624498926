package api

import (
	"mime/multipart"

	"github.com/gardentracker/gardentracker/internal/logger"
)

// storeUpload saves an uploaded image file, if any, and returns its path
func (c *Controller) storeUpload(fh *multipart.FileHeader) (*string, error) {
	if fh == nil {
		return nil, nil
	}
	saved, err := c.Files.SaveFile(fh)
	if err != nil {
		return nil, err
	}
	return &saved.Path, nil
}

// discard removes an upload whose record could not be written
func (c *Controller) discard(p *string) {
	if p != nil {
		c.removeFiles([]string{*p})
	}
}

// replaced removes the previous image once a new one is stored
func (c *Controller) replaced(previous, current *string) {
	if previous != nil && current != nil && *previous != *current {
		c.removeFiles([]string{*previous})
	}
}

// removeFiles deletes image files best effort; failures are logged by the
// image store and never fail the request
func (c *Controller) removeFiles(paths []string) {
	if len(paths) == 0 {
		return
	}
	if failed := c.Files.DeleteAll(paths); failed > 0 {
		c.log.Warn("some image files could not be removed",
			logger.Int("failed", failed),
			logger.Int("total", len(paths)))
	}
}
