package core

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"stockledger/internal/blob"
	"stockledger/pkg/domain"
)

// WithBlobStore attaches a blob backend used for product images.
func WithBlobStore(store blob.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.blobs = store
		}
	}
}

// ErrNoBlobStore is returned by image operations when no blob backend is configured.
var ErrNoBlobStore = fmt.Errorf("no blob store configured")

// AttachProductImage stores an image for the product and records its blob key.
// A previously attached image is deleted after the new one is stored.
func (s *Service) AttachProductImage(ctx context.Context, productID, filename string, r io.Reader, contentType string) (Product, error) {
	var updated Product
	err := s.run(ctx, "attach_image", func(ctx context.Context) (string, error) {
		if s.blobs == nil {
			return productID, ErrNoBlobStore
		}
		product, ok := s.store.GetProduct(productID)
		if !ok {
			return productID, domain.NotFoundError{Entity: domain.EntityProduct, ID: productID}
		}
		ext := strings.ToLower(path.Ext(filename))
		key := fmt.Sprintf("products/%s/%s%s", productID, uuid.NewString(), ext)
		if _, err := s.blobs.Put(ctx, key, r, blob.PutOptions{ContentType: contentType}); err != nil {
			return productID, fmt.Errorf("store image: %w", err)
		}
		previous := product.ImageKey

		var txErr error
		_, txErr = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateProduct(productID, func(p *Product) error {
				p.ImageKey = &key
				return nil
			})
			return err
		})
		if txErr != nil {
			// The record keeps its old key, so drop the orphaned upload.
			_, _ = s.blobs.Delete(ctx, key)
			return productID, txErr
		}
		if previous != nil {
			if _, err := s.blobs.Delete(ctx, *previous); err != nil {
				s.logger.Warn("delete replaced image", "key", *previous, "error", err)
			}
		}
		return productID, nil
	})
	return updated, err
}

// RemoveProductImage deletes the product's stored image, if any.
func (s *Service) RemoveProductImage(ctx context.Context, productID string) (Product, error) {
	var updated Product
	err := s.run(ctx, "remove_image", func(ctx context.Context) (string, error) {
		if s.blobs == nil {
			return productID, ErrNoBlobStore
		}
		product, ok := s.store.GetProduct(productID)
		if !ok {
			return productID, domain.NotFoundError{Entity: domain.EntityProduct, ID: productID}
		}
		if product.ImageKey == nil {
			updated = product
			return productID, nil
		}
		key := *product.ImageKey
		_, txErr := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateProduct(productID, func(p *Product) error {
				p.ImageKey = nil
				return nil
			})
			return err
		})
		if txErr != nil {
			return productID, txErr
		}
		if _, err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.Warn("delete image", "key", key, "error", err)
		}
		return productID, nil
	})
	return updated, err
}

// ProductImageURL returns a time-limited URL for the product's image.
func (s *Service) ProductImageURL(ctx context.Context, productID string) (string, error) {
	if s.blobs == nil {
		return "", ErrNoBlobStore
	}
	product, ok := s.store.GetProduct(productID)
	if !ok {
		return "", domain.NotFoundError{Entity: domain.EntityProduct, ID: productID}
	}
	if product.ImageKey == nil {
		return "", domain.NotFoundError{Entity: domain.EntityProduct, ID: productID + "/image"}
	}
	return s.blobs.PresignURL(ctx, *product.ImageKey, blob.SignedURLOptions{Method: "GET"})
}
