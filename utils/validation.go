package utils

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

type ValidationErr struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationResult struct {
	Valid  bool
	Errors []ValidationErr
}

func (v *ValidationResult) AddError(field, message string) {
	v.Valid = false
	v.Errors = append(v.Errors, ValidationErr{
		Field:   field,
		Message: message,
	})
}

func (v *ValidationResult) HasErrors() bool {
	return !v.Valid
}

func (v *ValidationResult) Error() string {
	if !v.Valid {
		messages := make([]string, len(v.Errors))
		for i, e := range v.Errors {
			messages[i] = e.Message
		}
		return strings.Join(messages, "; ")
	}
	return ""
}

func NewValidationResult() *ValidationResult {
	return &ValidationResult{Valid: true}
}

// ValidateSeeds requires at least one non-blank seed and at most max of them
func ValidateSeeds(seeds []string, max int) *ValidationResult {
	result := NewValidationResult()
	if len(seeds) == 0 {
		result.AddError("seeds", "seeds is required")
		return result
	}
	if max > 0 && len(seeds) > max {
		result.AddError("seeds", "at most "+strconv.Itoa(max)+" seeds are allowed")
	}
	for i, s := range seeds {
		if strings.TrimSpace(s) == "" {
			result.AddError("seeds", "seed "+strconv.Itoa(i)+" cannot be empty")
		}
	}
	return result
}

func ValidateNonNegativeInt(value int, fieldName string) *ValidationResult {
	result := NewValidationResult()
	if value < 0 {
		result.AddError(fieldName, fieldName+" cannot be negative")
	}
	return result
}

// ParseLimit reads an optional positive limit query value
func ParseLimit(raw string, max int) (int, *ValidationResult) {
	result := NewValidationResult()
	if raw == "" {
		return 0, result
	}
	l, err := strconv.Atoi(raw)
	if err != nil || l < 1 {
		result.AddError("limit", "limit must be a positive integer")
		return 0, result
	}
	if max > 0 && l > max {
		result.AddError("limit", "limit must be at most "+strconv.Itoa(max))
	}
	return l, result
}

// ParseID reads a positive numeric path id
func ParseID(raw, fieldName string) (uint, *ValidationResult) {
	result := NewValidationResult()
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		result.AddError(fieldName, "valid "+fieldName+" is required")
		return 0, result
	}
	return uint(id), result
}

// ValidateRequest writes the first failing result as a 400 and reports whether all passed
func ValidateRequest(ctx *gin.Context, validators ...*ValidationResult) bool {
	for _, v := range validators {
		if v.HasErrors() {
			ValidationError(ctx, v.Error())
			return false
		}
	}
	return true
}

func BindAndValidate(ctx *gin.Context, dest interface{}) bool {
	if err := ctx.ShouldBindJSON(dest); err != nil {
		ValidationError(ctx, err.Error())
		return false
	}
	return true
}
