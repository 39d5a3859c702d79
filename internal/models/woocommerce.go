package models

// ProductRecord is a product as returned by the WooCommerce REST API (wc/v3).
// Only the fields the storefront reads are decoded.
type ProductRecord struct {
	ID                int               `json:"id"`
	Name              string            `json:"name"`
	Slug              string            `json:"slug"`
	Permalink         string            `json:"permalink"`
	DateCreated       string            `json:"date_created"`
	DateModified      string            `json:"date_modified"`
	Type              string            `json:"type"`
	Status            string            `json:"status"`
	Featured          bool              `json:"featured"`
	CatalogVisibility string            `json:"catalog_visibility"`
	Description       string            `json:"description"`
	ShortDescription  string            `json:"short_description"`
	SKU               string            `json:"sku"`
	Price             string            `json:"price"`
	RegularPrice      string            `json:"regular_price"`
	SalePrice         *string           `json:"sale_price"`
	PriceHTML         string            `json:"price_html"`
	OnSale            bool              `json:"on_sale"`
	Purchasable       bool              `json:"purchasable"`
	TotalSales        int               `json:"total_sales"`
	ManageStock       bool              `json:"manage_stock"`
	StockQuantity     *int              `json:"stock_quantity"`
	StockStatus       string            `json:"stock_status"`
	Weight            string            `json:"weight"`
	Dimensions        DimensionsRecord  `json:"dimensions"`
	ReviewsAllowed    bool              `json:"reviews_allowed"`
	AverageRating     string            `json:"average_rating"`
	RatingCount       int               `json:"rating_count"`
	RelatedIDs        []int             `json:"related_ids"`
	ParentID          int               `json:"parent_id"`
	Categories        []CategoryRecord  `json:"categories"`
	Tags              []CategoryRecord  `json:"tags"`
	Images            []ImageRecord     `json:"images"`
	Attributes        []AttributeRecord `json:"attributes"`
	MenuOrder         int               `json:"menu_order"`
}

type DimensionsRecord struct {
	Length string `json:"length"`
	Width  string `json:"width"`
	Height string `json:"height"`
}

// CategoryRecord is used both for the category refs embedded in a product
// and for entries of /products/categories.
type CategoryRecord struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	Parent int    `json:"parent,omitempty"`
	Count  int    `json:"count,omitempty"`
}

type ImageRecord struct {
	ID           int    `json:"id"`
	DateCreated  string `json:"date_created"`
	DateModified string `json:"date_modified"`
	Src          string `json:"src"`
	Name         string `json:"name"`
	Alt          string `json:"alt"`
}

type AttributeRecord struct {
	ID        int      `json:"id"`
	Name      string   `json:"name"`
	Position  int      `json:"position"`
	Visible   bool     `json:"visible"`
	Variation bool     `json:"variation"`
	Options   []string `json:"options"`
}
