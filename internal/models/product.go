package models

type Product struct {
	ID               int                `json:"id"`
	Name             string             `json:"name"`
	Description      string             `json:"description"`
	ShortDescription string             `json:"short_description"`
	PlainDescription string             `json:"plain_description,omitempty"`
	Price            string             `json:"price"`
	RegularPrice     string             `json:"regular_price"`
	SalePrice        *string            `json:"sale_price,omitempty"`
	OnSale           bool               `json:"on_sale"`
	StockStatus      string             `json:"stock_status"`
	AverageRating    string             `json:"average_rating"`
	RatingValue      float64            `json:"rating_value"` // parsed AverageRating, for display only
	RatingCount      int                `json:"rating_count"`
	Categories       []Category         `json:"categories"`
	Images           []ProductImage     `json:"images"`
	Attributes       []ProductAttribute `json:"attributes"`
	SKU              string             `json:"sku"`
	Weight           string             `json:"weight"`
	Dimensions       Dimensions         `json:"dimensions"`
	Featured         bool               `json:"featured"`
	Permalink        string             `json:"permalink"`
}

type Category struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Count int    `json:"count,omitempty"`
}

type ProductImage struct {
	ID   int    `json:"id"`
	Src  string `json:"src"`
	Name string `json:"name"`
	Alt  string `json:"alt"`
}

type ProductAttribute struct {
	ID      int      `json:"id"`
	Name    string   `json:"name"`
	Options []string `json:"options"`
	Visible bool     `json:"visible"`
}

type Dimensions struct {
	Length string `json:"length"`
	Width  string `json:"width"`
	Height string `json:"height"`
}
