package pricing

import (
	_ "embed"
	"strings"
)

const (
	mealService          = "Ăn sáng tại khách sạn/căn hộ và 2 bữa chính"
	breakfastOnlyService = "Ăn sáng tại khách sạn/căn hộ"
	esimService          = "eSIM 1GB/ngày"
	hotelService         = "Khách sạn 3-4* hoặc căn hộ tương đương"
	upgradedHotelService = "Khách sạn 5* (nâng cấp)"
)

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

// DefaultCatalog returns the built-in catalog. It panics if the embedded
// file is invalid, which the package tests rule out.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(err)
	}
	return c
}

// Load returns the catalog at path, or the built-in one when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultCatalog(), nil
	}
	return LoadCatalog(path)
}
