package contract

import "errors"

var (
	ErrModelInvoke = errors.New("model invoke failed")
	ErrEmbedding   = errors.New("embedding failed")
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrEmptyBasket = errors.New("basket empty")
	ErrNotInShop   = errors.New("ingredient not in shop")
)
