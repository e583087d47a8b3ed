package utils

import (
	"github.com/mojocn/base64Captcha"
	"github.com/redis/go-redis/v9"
)

// Captcha issues digit captchas and verifies answers.
type Captcha struct {
	store  base64Captcha.Store
	driver base64Captcha.Driver
}

// NewCaptcha keeps answers in Redis when rdb is set, else in process memory.
func NewCaptcha(rdb *redis.Client) *Captcha {
	var store base64Captcha.Store = base64Captcha.DefaultMemStore
	if rdb != nil {
		store = newRedisCaptchaStore(rdb, 0)
	}
	return &Captcha{
		store: store,
		// width 120, height 40, length 5
		driver: base64Captcha.NewDriverDigit(40, 120, 5, 0.7, 80),
	}
}

// Generate creates a captcha and returns (id, dataURI) for the frontend to display.
func (c *Captcha) Generate() (string, string, error) {
	id, b64, _, err := base64Captcha.NewCaptcha(c.driver, c.store).Generate()
	return id, b64, err
}

// Verify checks the answer and consumes the captcha.
func (c *Captcha) Verify(id, answer string) bool {
	if id == "" || answer == "" {
		return false
	}
	return c.store.Verify(id, answer, true)
}
