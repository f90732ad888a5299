package service

import (
	"context"
	"errors"

	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/model"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/repository"
)

// GetCart возвращает корзину пользователя. Корзины без позиций возвращаются пустыми.
func (s *Service) GetCart(ctx context.Context, userID int64) (*model.Cart, error) {
	return s.repo.GetCart(ctx, userID)
}

// AddToCart добавляет товар в корзину. Суммарное количество не может превышать остаток.
func (s *Service) AddToCart(ctx context.Context, userID, productID, qty int64) (*model.CartLine, error) {
	if qty < 1 {
		return nil, newValidationError("quantity", "수량은 1 이상이어야 합니다.")
	}

	p, err := s.orderableProduct(ctx, productID, "")
	if err != nil {
		return nil, err
	}

	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	total := qty
	if line := findLineByProduct(cart, productID); line != nil {
		total += line.Quantity
	}
	if total > p.Stock {
		return nil, &ProductError{Problem: ProductOutOfStock, ProductID: p.ID, Name: p.Name, Requested: total, Available: p.Stock}
	}

	line, err := s.repo.AddCartItem(ctx, userID, productID, qty, p.Price)
	if err != nil {
		return nil, err
	}
	line.Product = p
	return line, nil
}

// UpdateCartLine задаёт количество позиции. Нулевое количество удаляет позицию.
func (s *Service) UpdateCartLine(ctx context.Context, userID, lineID, qty int64) error {
	if qty < 0 {
		return newValidationError("quantity", "수량은 0 이상이어야 합니다.")
	}
	if qty == 0 {
		return s.repo.RemoveCartItem(ctx, userID, lineID)
	}

	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return err
	}

	var line *model.CartLine
	for i := range cart.Lines {
		if cart.Lines[i].ID == lineID {
			line = &cart.Lines[i]
			break
		}
	}
	if line == nil {
		return repository.ErrCartLineNotFound
	}

	p, err := s.orderableProduct(ctx, line.ProductID, productName(line))
	if err != nil {
		return err
	}
	if qty > p.Stock {
		return &ProductError{Problem: ProductOutOfStock, ProductID: p.ID, Name: p.Name, Requested: qty, Available: p.Stock}
	}

	return s.repo.UpdateCartItem(ctx, userID, lineID, qty)
}

// RemoveCartLine удаляет позицию из корзины.
func (s *Service) RemoveCartLine(ctx context.Context, userID, lineID int64) error {
	return s.repo.RemoveCartItem(ctx, userID, lineID)
}

// ClearCart удаляет все позиции корзины.
func (s *Service) ClearCart(ctx context.Context, userID int64) error {
	return s.repo.ClearCart(ctx, userID)
}

// orderableProduct загружает товар и проверяет, что он продаётся.
func (s *Service) orderableProduct(ctx context.Context, productID int64, name string) (*model.Product, error) {
	p, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, &ProductError{Problem: ProductMissing, ProductID: productID, Name: name}
		}
		return nil, err
	}
	if p.Deleted {
		return nil, &ProductError{Problem: ProductMissing, ProductID: productID, Name: p.Name}
	}
	if !p.Orderable() {
		return nil, &ProductError{Problem: ProductUnavailable, ProductID: productID, Name: p.Name}
	}
	return p, nil
}

func findLineByProduct(cart *model.Cart, productID int64) *model.CartLine {
	if cart == nil {
		return nil
	}
	for i := range cart.Lines {
		if cart.Lines[i].ProductID == productID {
			return &cart.Lines[i]
		}
	}
	return nil
}

func productName(line *model.CartLine) string {
	if line.Product != nil {
		return line.Product.Name
	}
	return ""
}
