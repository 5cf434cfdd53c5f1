package supplierapi

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/dropship/backend/internal/domain/supplier"
	"github.com/shopspring/decimal"
)

// Response codes with special handling
const (
	codeSuccess      = 200
	codeTokenInvalid = 1600001
	codeTokenExpired = 1600003
	codeRateLimited  = 1600200
)

// envelope wraps every API response
type envelope struct {
	Code      int             `json:"code"`
	Result    bool            `json:"result"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	RequestID string          `json:"requestId"`
}

func (e *envelope) ok() bool {
	return e.Code == codeSuccess
}

func (e *envelope) hasData() bool {
	d := bytes.TrimSpace(e.Data)
	return len(d) > 0 && !bytes.Equal(d, []byte("null"))
}

// ---------------------------------------------------------------------------
// Loose scalars
// ---------------------------------------------------------------------------

// looseDecimal accepts a JSON number, a numeric string or a range string
// ("3.50 -- 4.20"); a range resolves to its upper bound. Valid is false when
// the field was absent or unparseable.
type looseDecimal struct {
	Value decimal.Decimal
	Valid bool
}

func (l *looseDecimal) UnmarshalJSON(b []byte) error {
	*l = looseDecimal{}
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	best, ok := decimal.Zero, false
	for _, part := range splitRange(s) {
		d, err := decimal.NewFromString(part)
		if err != nil {
			continue
		}
		if !ok || d.GreaterThan(best) {
			best, ok = d, true
		}
	}
	l.Value, l.Valid = best, ok
	return nil
}

func (l looseDecimal) orZero() decimal.Decimal {
	if !l.Valid {
		return decimal.Zero
	}
	return l.Value
}

// looseGrams is a weight in grams with the same leniency as looseDecimal.
// Zero or negative weights count as unknown.
type looseGrams struct {
	looseDecimal
}

func (g looseGrams) ptr() *int {
	if !g.Valid || !g.Value.IsPositive() {
		return nil
	}
	n := int(g.Value.Ceil().IntPart())
	return &n
}

// looseInt accepts a number or numeric string
type looseInt int

func (i *looseInt) UnmarshalJSON(b []byte) error {
	var d looseDecimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	*i = looseInt(d.orZero().IntPart())
	return nil
}

// looseStrings accepts a JSON array of strings, a JSON-encoded array inside
// a string, or a single comma-separated string.
type looseStrings []string

func (s *looseStrings) UnmarshalJSON(b []byte) error {
	*s = nil
	var arr []string
	if err := json.Unmarshal(b, &arr); err == nil {
		*s = compact(arr)
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return nil
	}
	str = strings.TrimSpace(str)
	if strings.HasPrefix(str, "[") {
		if err := json.Unmarshal([]byte(str), &arr); err == nil {
			*s = compact(arr)
			return nil
		}
	}
	*s = compact(strings.Split(str, ","))
	return nil
}

func splitRange(s string) []string {
	s = strings.ReplaceAll(s, "--", "-")
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == ' ' || r == '~' })
	if len(fields) == 0 {
		return []string{s}
	}
	return fields
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Authentication
// ---------------------------------------------------------------------------

type authRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenData struct {
	AccessToken            string `json:"accessToken"`
	AccessTokenExpiryDate  string `json:"accessTokenExpiryDate"`
	RefreshToken           string `json:"refreshToken"`
	RefreshTokenExpiryDate string `json:"refreshTokenExpiryDate"`
}

var expiryLayouts = []string{time.RFC3339, "2006-01-02T15:04:05.000-0700", "2006-01-02T15:04:05-0700", "2006-01-02 15:04:05"}

func parseExpiry(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

type listData struct {
	PageNum  looseInt        `json:"pageNum"`
	PageSize looseInt        `json:"pageSize"`
	Total    looseInt        `json:"total"`
	List     []listEntryWire `json:"list"`
}

type listEntryWire struct {
	PID           string       `json:"pid"`
	ProductNameEn string       `json:"productNameEn"`
	ProductName   string       `json:"productName"`
	ProductImage  string       `json:"productImage"`
	SellPrice     looseDecimal `json:"sellPrice"`
	ProductWeight looseGrams   `json:"productWeight"`
	CategoryID    string       `json:"categoryId"`
}

func (w listEntryWire) toDomain() supplier.ListEntry {
	return supplier.ListEntry{
		PID:         w.PID,
		Name:        firstNonEmpty(w.ProductNameEn, w.ProductName),
		CategoryID:  w.CategoryID,
		Image:       w.ProductImage,
		UnitCost:    w.SellPrice.orZero(),
		WeightGrams: w.ProductWeight.ptr(),
	}
}

type productWire struct {
	PID             string        `json:"pid"`
	ProductNameEn   string        `json:"productNameEn"`
	ProductName     string        `json:"productName"`
	Description     string        `json:"description"`
	ProductImage    string        `json:"productImage"`
	ProductImageSet looseStrings  `json:"productImageSet"`
	SellPrice       looseDecimal  `json:"sellPrice"`
	ProductWeight   looseGrams    `json:"productWeight"`
	CategoryID      string        `json:"categoryId"`
	Variants        []variantWire `json:"variants"`
}

type variantWire struct {
	VID              string       `json:"vid"`
	VariantSku       string       `json:"variantSku"`
	VariantKey       string       `json:"variantKey"`
	VariantNameEn    string       `json:"variantNameEn"`
	VariantImage     string       `json:"variantImage"`
	VariantSellPrice looseDecimal `json:"variantSellPrice"`
	VariantWeight    looseGrams   `json:"variantWeight"`
}

// toDomain builds the domain product. Missing fields get explicit defaults:
// images fall back to the single product image, variant cost and weight
// fall back to the product's.
func (w productWire) toDomain(raw json.RawMessage) *supplier.Product {
	images := []string(w.ProductImageSet)
	if len(images) == 0 && w.ProductImage != "" {
		images = []string{w.ProductImage}
	}
	p := &supplier.Product{
		PID:         w.PID,
		Name:        firstNonEmpty(w.ProductNameEn, w.ProductName),
		Description: w.Description,
		CategoryID:  w.CategoryID,
		Images:      images,
		UnitCost:    w.SellPrice.orZero(),
		WeightGrams: w.ProductWeight.ptr(),
		Raw:         raw,
	}
	for _, vw := range w.Variants {
		color, size := parseVariantKey(vw.VariantKey)
		v := supplier.Variant{
			VID:         vw.VID,
			SKU:         vw.VariantSku,
			Color:       color,
			Size:        size,
			Image:       vw.VariantImage,
			UnitCost:    vw.VariantSellPrice.orZero(),
			WeightGrams: vw.VariantWeight.ptr(),
		}
		if !vw.VariantSellPrice.Valid {
			v.UnitCost = p.UnitCost
		}
		if v.WeightGrams == nil {
			v.WeightGrams = p.WeightGrams
		}
		p.Variants = append(p.Variants, v)
	}
	return p
}

// parseVariantKey splits "Red-XL" into color and size. A single segment is
// treated as a color; a size-like single segment as a size.
func parseVariantKey(key string) (color, size string) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ""
	}
	parts := strings.Split(key, "-")
	if len(parts) == 1 {
		if looksLikeSize(parts[0]) {
			return "", strings.TrimSpace(parts[0])
		}
		return strings.TrimSpace(parts[0]), ""
	}
	size = strings.TrimSpace(parts[len(parts)-1])
	color = strings.TrimSpace(strings.Join(parts[:len(parts)-1], "-"))
	return color, size
}

var sizeTokens = map[string]struct{}{
	"XXS": {}, "XS": {}, "S": {}, "M": {}, "L": {}, "XL": {}, "XXL": {}, "XXXL": {},
	"2XL": {}, "3XL": {}, "4XL": {}, "5XL": {}, "ONE SIZE": {}, "FREE SIZE": {},
}

func looksLikeSize(s string) bool {
	s = strings.ToUpper(strings.TrimSpace(s))
	if _, ok := sizeTokens[s]; ok {
		return true
	}
	_, err := strconv.Atoi(s)
	return err == nil
}

type stockWire struct {
	VID               string   `json:"vid"`
	CountryCode       string   `json:"countryCode"`
	TotalInventoryNum looseInt `json:"totalInventoryNum"`
	StorageNum        looseInt `json:"storageNum"`
}

func (w stockWire) toDomain() supplier.StockEntry {
	qty := int(w.TotalInventoryNum)
	if qty == 0 {
		qty = int(w.StorageNum)
	}
	if qty < 0 {
		qty = 0
	}
	return supplier.StockEntry{VariantID: w.VID, CountryCode: strings.ToUpper(w.CountryCode), Quantity: qty}
}

// ---------------------------------------------------------------------------
// Logistics and orders
// ---------------------------------------------------------------------------

type freightRequest struct {
	StartCountryCode string            `json:"startCountryCode"`
	EndCountryCode   string            `json:"endCountryCode"`
	Products         []freightLineWire `json:"products"`
}

type freightLineWire struct {
	Quantity int    `json:"quantity"`
	VID      string `json:"vid"`
}

type freightOptionWire struct {
	LogisticName  string       `json:"logisticName"`
	LogisticPrice looseDecimal `json:"logisticPrice"`
	LogisticAging string       `json:"logisticAging"`
}

type createOrderRequest struct {
	OrderNumber          string            `json:"orderNumber"`
	ShippingCountryCode  string            `json:"shippingCountryCode"`
	ShippingProvince     string            `json:"shippingProvince"`
	ShippingCity         string            `json:"shippingCity"`
	ShippingAddress      string            `json:"shippingAddress"`
	ShippingAddress2     string            `json:"shippingAddress2,omitempty"`
	ShippingCustomerName string            `json:"shippingCustomerName"`
	ShippingZip          string            `json:"shippingZip"`
	ShippingPhone        string            `json:"shippingPhone"`
	LogisticName         string            `json:"logisticName,omitempty"`
	Products             []freightLineWire `json:"products"`
}

type orderWire struct {
	OrderID      string `json:"orderId"`
	OrderNum     string `json:"orderNum"`
	OrderStatus  string `json:"orderStatus"`
	TrackNumber  string `json:"trackNumber"`
	LogisticName string `json:"logisticName"`
	UpdateDate   string `json:"updateDate"`
}

type commentListData struct {
	PageNum  looseInt      `json:"pageNum"`
	PageSize looseInt      `json:"pageSize"`
	Total    looseInt      `json:"total"`
	List     []commentWire `json:"list"`
}

type commentWire struct {
	CommentID   string       `json:"commentId"`
	PID         string       `json:"pid"`
	Comment     string       `json:"comment"`
	CommentDate string       `json:"commentDate"`
	CommentUser string       `json:"commentUser"`
	Score       looseInt     `json:"score"`
	CommentUrls looseStrings `json:"commentUrls"`
	CountryCode string       `json:"countryCode"`
}

func (w commentWire) toDomain(pid string) supplier.Review {
	r := supplier.Review{
		ExternalID: w.CommentID,
		PID:        firstNonEmpty(w.PID, pid),
		Rating:     int(w.Score),
		Body:       strings.TrimSpace(w.Comment),
		Author:     strings.TrimSpace(w.CommentUser),
		Country:    strings.ToUpper(w.CountryCode),
		Images:     []string(w.CommentUrls),
	}
	if t, ok := parseExpiry(w.CommentDate); ok {
		r.PostedAt = &t
	}
	return r
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
