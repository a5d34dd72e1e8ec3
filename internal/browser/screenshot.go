package browser

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/playwright-community/playwright-go"
)

// ScreenshotDebugger stores full-page screenshots of pages that did not
// render as expected. A nil debugger is a no-op.
type ScreenshotDebugger struct {
	outputDir string
}

func NewScreenshotDebugger(dir string) *ScreenshotDebugger {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("⚠️ Failed to create screenshot directory: %v", err)
		return nil
	}
	return &ScreenshotDebugger{outputDir: dir}
}

func (s *ScreenshotDebugger) path(name string) string {
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(s.outputDir, fmt.Sprintf("%s_%s.png", name, timestamp))
}

// CaptureAndLog screenshots a playwright page.
func (s *ScreenshotDebugger) CaptureAndLog(page playwright.Page, name, message string) error {
	if s == nil {
		return nil
	}
	target := s.path(name)
	log.Printf("📸 %s", message)

	_, err := page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(target),
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		log.Printf("⚠️ Failed to capture screenshot: %v", err)
		return err
	}
	log.Printf("   Screenshot saved: %s", target)
	return nil
}

// SaveAndLog writes an already captured PNG.
func (s *ScreenshotDebugger) SaveAndLog(png []byte, name, message string) error {
	if s == nil {
		return nil
	}
	target := s.path(name)
	log.Printf("📸 %s", message)
	if err := os.WriteFile(target, png, 0644); err != nil {
		log.Printf("⚠️ Failed to write screenshot: %v", err)
		return err
	}
	log.Printf("   Screenshot saved: %s", target)
	return nil
}
