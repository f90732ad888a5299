package service

import (
	"context"
	"strings"

	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/model"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/repository"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/validation"
)

// ProductInput - данные товара, которые задаёт администратор.
type ProductInput struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	ImageURL    string              `json:"imageUrl"`
	Price       int64               `json:"price"`
	Stock       int64               `json:"stock"`
	Status      model.ProductStatus `json:"status"`
}

func (in *ProductInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Status == "" {
		in.Status = model.ProductStatusOnSale
	}

	errs := validation.Errors{}
	if in.Name == "" {
		errs.Add("name", "상품명을 입력해 주세요.")
	}
	if in.Price < 0 {
		errs.Add("price", "가격은 0 이상이어야 합니다.")
	}
	if in.Stock < 0 {
		errs.Add("stock", "재고는 0 이상이어야 합니다.")
	}
	if !in.Status.Valid() {
		errs.Add("status", "유효하지 않은 판매 상태입니다.")
	}
	if !errs.Empty() {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// ListProducts возвращает страницу каталога. Скрытые товары видит только администратор.
func (s *Service) ListProducts(ctx context.Context, query string, page model.Page, includeHidden bool) ([]model.Product, error) {
	return s.repo.ListProducts(ctx, repository.ProductFilter{
		Query:         strings.TrimSpace(query),
		IncludeHidden: includeHidden,
		Page:          page.Normalize(),
	})
}

// GetProduct возвращает товар. Для покупателя удалённые и приостановленные товары не существуют.
func (s *Service) GetProduct(ctx context.Context, id int64, includeHidden bool) (*model.Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if !includeHidden && (p.Deleted || p.Status == model.ProductStatusSuspended) {
		return nil, repository.ErrProductNotFound
	}
	return p, nil
}

// CreateProduct добавляет товар в каталог.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*model.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	p := &model.Product{
		Name:        in.Name,
		Description: in.Description,
		ImageURL:    in.ImageURL,
		Price:       in.Price,
		Stock:       in.Stock,
		Status:      in.Status,
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateProduct заменяет данные товара.
func (s *Service) UpdateProduct(ctx context.Context, id int64, in ProductInput) (*model.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	p := &model.Product{
		ID:          id,
		Name:        in.Name,
		Description: in.Description,
		ImageURL:    in.ImageURL,
		Price:       in.Price,
		Stock:       in.Stock,
		Status:      in.Status,
	}
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteProduct мягко удаляет товар. Уже оформленные заказы его не теряют.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	return s.repo.SoftDeleteProduct(ctx, id)
}
