// Package mapper converts WooCommerce wire records into domain records.
package mapper

import (
	"storefront-api/internal/models"
	"storefront-api/pkg/utils"
)

// ProductMapper is stateless; the zero value is ready to use.
type ProductMapper struct{}

func NewProductMapper() ProductMapper {
	return ProductMapper{}
}

// ToDomain maps one product record. It is total over decoded records:
// nil slices become empty slices and nothing is dropped or reordered.
func (ProductMapper) ToDomain(r models.ProductRecord) models.Product {
	p := models.Product{
		ID:               r.ID,
		Name:             r.Name,
		Description:      r.Description,
		ShortDescription: r.ShortDescription,
		PlainDescription: utils.PlainText(r.Description),
		Price:            r.Price,
		RegularPrice:     r.RegularPrice,
		SalePrice:        r.SalePrice,
		OnSale:           r.OnSale,
		StockStatus:      r.StockStatus,
		AverageRating:    r.AverageRating,
		RatingValue:      utils.ParseRating(r.AverageRating),
		RatingCount:      r.RatingCount,
		Categories:       make([]models.Category, 0, len(r.Categories)),
		Images:           make([]models.ProductImage, 0, len(r.Images)),
		Attributes:       make([]models.ProductAttribute, 0, len(r.Attributes)),
		SKU:              r.SKU,
		Weight:           r.Weight,
		Dimensions: models.Dimensions{
			Length: r.Dimensions.Length,
			Width:  r.Dimensions.Width,
			Height: r.Dimensions.Height,
		},
		Featured:  r.Featured,
		Permalink: r.Permalink,
	}

	for _, c := range r.Categories {
		p.Categories = append(p.Categories, CategoryToDomain(c))
	}
	for _, img := range r.Images {
		p.Images = append(p.Images, models.ProductImage{
			ID:   img.ID,
			Src:  img.Src,
			Name: img.Name,
			Alt:  img.Alt,
		})
	}
	for _, a := range r.Attributes {
		options := make([]string, len(a.Options))
		copy(options, a.Options)
		p.Attributes = append(p.Attributes, models.ProductAttribute{
			ID:      a.ID,
			Name:    a.Name,
			Options: options,
			Visible: a.Visible,
		})
	}

	return p
}

// ToDomainList maps records preserving backend order.
func (m ProductMapper) ToDomainList(records []models.ProductRecord) []models.Product {
	products := make([]models.Product, 0, len(records))
	for _, r := range records {
		products = append(products, m.ToDomain(r))
	}
	return products
}

func CategoryToDomain(c models.CategoryRecord) models.Category {
	return models.Category{
		ID:    c.ID,
		Name:  c.Name,
		Slug:  c.Slug,
		Count: c.Count,
	}
}
