package browser

import (
	"math/rand"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

const (
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
	locale         = "ko-KR"
	timezoneID     = "Asia/Seoul"
	viewportWidth  = 1920
	viewportHeight = 1080
)

var launchArgs = []string{
	"--disable-blink-features=AutomationControlled",
	"--no-sandbox",
	"--disable-setuid-sandbox",
	"--disable-infobars",
	"--window-position=0,0",
	"--ignore-certificate-errors",
	"--disable-extensions",
	"--disable-dev-shm-usage",
	"--disable-gpu",
}

// stealthScript runs before any page script and hides the usual
// automation fingerprints.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
window.chrome = { runtime: {} };
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
Object.defineProperty(navigator, 'languages', { get: () => ['ko-KR', 'ko', 'en-US', 'en'] });
`

func extraHeaders() map[string]string {
	return map[string]string{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
		"Accept-Language": "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7",
	}
}

var challengeMarkers = []string{"Attention Required", "Just a moment", "Cloudflare"}

func isChallengeTitle(title string) bool {
	for _, m := range challengeMarkers {
		if strings.Contains(title, m) {
			return true
		}
	}
	return false
}

// RandomDelay waits for a random duration between min and max milliseconds
func RandomDelay(min, max int) {
	if max <= min {
		time.Sleep(time.Duration(min) * time.Millisecond)
		return
	}
	duration := rand.Intn(max-min+1) + min
	time.Sleep(time.Duration(duration) * time.Millisecond)
}

// HumanScroll scrolls down in steps and back up a little, which also
// triggers lazy-loaded cards.
func HumanScroll(page playwright.Page) error {
	for i := 0; i < 3; i++ {
		if _, err := page.Evaluate("window.scrollBy(0, window.innerHeight / 2)"); err != nil {
			return err
		}
		RandomDelay(300, 800)
	}
	_, err := page.Evaluate("window.scrollBy(0, -200)")
	return err
}

// MouseJiggle moves the mouse to a few random points inside the viewport.
func MouseJiggle(page playwright.Page) error {
	size := page.ViewportSize()
	if size == nil || size.Width <= 0 || size.Height <= 0 {
		return nil
	}
	for i := 0; i < 3; i++ {
		x := rand.Intn(size.Width)
		y := rand.Intn(size.Height)
		if err := page.Mouse().Move(float64(x), float64(y)); err != nil {
			return err
		}
		RandomDelay(100, 300)
	}
	return nil
}
