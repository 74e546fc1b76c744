package model

// MediaKind classifies stored media.
type MediaKind string

// Media kinds.
const (
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
	KindAudio MediaKind = "audio"
)

// Product is a catalogue entry shown on the landing page.
type Product struct {
	ID            string `json:"id"`
	Name          string `json:"name" validate:"required"`
	Description   string `json:"description" validate:"required"`
	ImageURL      string `json:"imageUrl" validate:"required"`
	ImagePublicID string `json:"imagePublicId,omitempty"`
}

// Service is an offered service shown on the landing page.
type Service struct {
	ID            string `json:"id"`
	Name          string `json:"name" validate:"required"`
	Description   string `json:"description" validate:"required"`
	ImageURL      string `json:"imageUrl" validate:"required"`
	ImagePublicID string `json:"imagePublicId,omitempty"`
}

// Testimonial is a customer quote.
type Testimonial struct {
	ID    string `json:"id"`
	Name  string `json:"name" validate:"required"`
	Quote string `json:"quote" validate:"required"`
}

// GalleryItem is a photo, video or audio clip of the public gallery.
type GalleryItem struct {
	ID          string    `json:"id"`
	FileURL     string    `json:"fileUrl" validate:"required"`
	Description string    `json:"description" validate:"required"`
	Type        MediaKind `json:"type" validate:"required,oneof=image video audio"`
	PublicID    string    `json:"publicId,omitempty"`
}

// IsVideo is used by templates to pick the right player element.
func (g GalleryItem) IsVideo() bool { return g.Type == KindVideo }

// IsAudio is used by templates to pick the right player element.
func (g GalleryItem) IsAudio() bool { return g.Type == KindAudio }

// ProductFromRecord builds the typed view of a products record.
func ProductFromRecord(r Record) Product {
	return Product{
		ID:            r.ID,
		Name:          r.Get(FieldName),
		Description:   r.Get(FieldDescription),
		ImageURL:      r.Get(FieldImageURL),
		ImagePublicID: r.Get(FieldImagePublicID),
	}
}

// ServiceFromRecord builds the typed view of a services record.
func ServiceFromRecord(r Record) Service {
	return Service{
		ID:            r.ID,
		Name:          r.Get(FieldName),
		Description:   r.Get(FieldDescription),
		ImageURL:      r.Get(FieldImageURL),
		ImagePublicID: r.Get(FieldImagePublicID),
	}
}

// TestimonialFromRecord builds the typed view of a testimonials record.
func TestimonialFromRecord(r Record) Testimonial {
	return Testimonial{
		ID:    r.ID,
		Name:  r.Get(FieldName),
		Quote: r.Get(FieldQuote),
	}
}

// GalleryItemFromRecord builds the typed view of a gallery record.
func GalleryItemFromRecord(r Record) GalleryItem {
	return GalleryItem{
		ID:          r.ID,
		FileURL:     r.Get(FieldFileURL),
		Description: r.Get(FieldDescription),
		Type:        MediaKind(r.Get(FieldType)),
		PublicID:    r.Get(FieldPublicID),
	}
}

// View returns the typed view of r for collection c.
func View(c Collection, r Record) (any, error) {
	switch c {
	case CollectionProducts:
		return ProductFromRecord(r), nil
	case CollectionServices:
		return ServiceFromRecord(r), nil
	case CollectionTestimonials:
		return TestimonialFromRecord(r), nil
	case CollectionGallery:
		return GalleryItemFromRecord(r), nil
	default:
		return nil, ErrUnknownCollection
	}
}

// Catalog groups the typed views of every collection for rendering.
type Catalog struct {
	Products     []Product
	Services     []Service
	Testimonials []Testimonial
	Gallery      []GalleryItem
}

// Add appends the typed view of r to the slice for collection c.
func (cat *Catalog) Add(c Collection, r Record) {
	switch c {
	case CollectionProducts:
		cat.Products = append(cat.Products, ProductFromRecord(r))
	case CollectionServices:
		cat.Services = append(cat.Services, ServiceFromRecord(r))
	case CollectionTestimonials:
		cat.Testimonials = append(cat.Testimonials, TestimonialFromRecord(r))
	case CollectionGallery:
		cat.Gallery = append(cat.Gallery, GalleryItemFromRecord(r))
	}
}
