package payment

import (
	"errors"
	"fmt"

	"github.com/magabrotheeeer/riya-bot/internal/models"
)

// ErrUnknownPlan тариф с таким ключом не настроен.
var ErrUnknownPlan = errors.New("unknown plan")

// Catalog неизменяемый набор тарифов из конфига.
type Catalog struct {
	plans      []models.Plan
	byKey      map[string]models.Plan
	defaultKey string
}

// NewCatalog создаёт каталог. Тариф по умолчанию должен присутствовать в списке.
func NewCatalog(plans []models.Plan, defaultKey string) (*Catalog, error) {
	const op = "payment.NewCatalog"
	c := &Catalog{
		plans:      append([]models.Plan(nil), plans...),
		byKey:      make(map[string]models.Plan, len(plans)),
		defaultKey: defaultKey,
	}
	for _, p := range plans {
		c.byKey[p.Key] = p
	}
	if _, ok := c.byKey[defaultKey]; !ok {
		return nil, fmt.Errorf("%s: default %q: %w", op, defaultKey, ErrUnknownPlan)
	}
	return c, nil
}

// Get возвращает тариф по ключу; пустой ключ означает тариф по умолчанию.
func (c *Catalog) Get(key string) (models.Plan, error) {
	if key == "" {
		key = c.defaultKey
	}
	p, ok := c.byKey[key]
	if !ok {
		return models.Plan{}, fmt.Errorf("%q: %w", key, ErrUnknownPlan)
	}
	return p, nil
}

// All возвращает тарифы в порядке конфига.
func (c *Catalog) All() []models.Plan {
	return append([]models.Plan(nil), c.plans...)
}
