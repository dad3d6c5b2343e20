package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"catalogue/internal/core/apperror"
	"catalogue/internal/core/tenant"
)

const (
	HeaderCity      = "X-City"
	HeaderCompanyID = "X-Company-ID"
)

// Scope resolves the storefront tenant scope from headers. The city is required and
// must be known; the company is an optional UUID.
func Scope(cities tenant.CityDirectory) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		city := tenant.CitySlug(strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderCity))))
		if city == "" {
			_ = c.Error(apperror.NewValidation(HeaderCity + " header is required").WithDetail("header", HeaderCity))
			c.Abort()
			return
		}
		if !cities.IsKnownCity(ctx, city) {
			_ = c.Error(apperror.NewUnknownCity(city.String()))
			c.Abort()
			return
		}

		companyID := strings.TrimSpace(c.GetHeader(HeaderCompanyID))
		if companyID != "" {
			parsed, err := uuid.Parse(companyID)
			if err != nil {
				_ = c.Error(apperror.NewValidation(HeaderCompanyID + " must be a UUID").WithDetail("header", HeaderCompanyID))
				c.Abort()
				return
			}
			companyID = parsed.String()
		}

		ctx = tenant.WithScope(ctx, tenant.Scope{CompanyID: companyID, City: city})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
