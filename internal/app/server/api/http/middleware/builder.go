package middleware

import "github.com/danielgtaylor/huma/v2"

// Container собирает middleware для следующей группы хендлеров.
type Container struct {
	huma.Middlewares
}

func NewContainer() *Container {
	return &Container{Middlewares: make(huma.Middlewares, 0)}
}

// Add добавляет middleware в порядке вызова.
func (c *Container) Add(mws ...func(huma.Context, func(huma.Context))) *Container {
	c.Middlewares = append(c.Middlewares, mws...)
	return c
}

// GetAllAndClear отдает собранные middleware и начинает новую группу.
func (c *Container) GetAllAndClear() huma.Middlewares {
	result := c.Middlewares
	c.Middlewares = nil
	return result
}
