package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/cppla/webdevhub/utils"
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	registerOnce    sync.Once
)

// fieldMessages overrides the generic message for a json field and validation tag.
var fieldMessages = map[string]string{
	"username.required":          "Username must be between 3 and 30 characters",
	"username.min":               "Username must be between 3 and 30 characters",
	"username.max":               "Username must be between 3 and 30 characters",
	"username.username":          "Username can only contain letters, numbers, and underscores",
	"email.required":             "Please provide a valid email address",
	"email.email":                "Please provide a valid email address",
	"identifier.required":        "Username or email is required",
	"password.required":          "Password is required",
	"title.required":             "Title is required and must not exceed 200 characters",
	"title.max":                  "Title is required and must not exceed 200 characters",
	"image.url":                  "Image must be a valid URL",
	"category.max":               "Category must be less than 50 characters",
	"bio.max":                    "Bio cannot exceed 500 characters",
	"avatar.url":                 "Avatar must be a valid URL",
	"currentPassword.required":   "Current password is required",
	"newPassword.min":            "New password must be at least 6 characters long",
	"newPassword.strongpassword": "New password must contain at least one uppercase letter, one lowercase letter, one number, and one special character",
	"name.min":                   "Name must be between 2 and 100 characters",
	"name.max":                   "Name must be between 2 and 100 characters",
	"subject.min":                "Subject must be between 5 and 200 characters",
	"subject.max":                "Subject must be between 5 and 200 characters",
	"message.min":                "Message must be between 10 and 2000 characters",
	"message.max":                "Message must be between 10 and 2000 characters",
	"replyMessage.min":           "Reply message must be between 10 and 2000 characters",
	"replyMessage.max":           "Reply message must be between 10 and 2000 characters",
	"status.oneof":               "Invalid status value",
}

// registerValidators installs json field naming and the custom rules on gin's validator.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return usernamePattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
			return strongPassword(fl.Field().String())
		})
	})
}

// strongPassword requires a lowercase letter, an uppercase letter, a digit and one of @$!%*?&.
func strongPassword(s string) bool {
	var lower, upper, digit, special bool
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune("@$!%*?&", r):
			special = true
		}
	}
	return lower && upper && digit && special
}

// bindJSON decodes and validates the body into dst. On failure the 400 response is already written.
func bindJSON(ctx *gin.Context, dst any) bool {
	registerValidators()
	err := ctx.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]utils.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, utils.FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
		}
		utils.Error(ctx, http.StatusBadRequest, "Validation failed", fields...)
		return false
	}
	utils.Error(ctx, http.StatusBadRequest, "Invalid request body")
	return false
}

func fieldMessage(fe validator.FieldError) string {
	if msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must not exceed %s characters", fe.Field(), fe.Param())
	case "email":
		return "Please provide a valid email address"
	case "url":
		return fe.Field() + " must be a valid URL"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fe.Field() + " is invalid"
	}
}
