package autoload

import (
	configx "github.com/tanpawarit/recipe-basket-agent/pkg/config"
	logx "github.com/tanpawarit/recipe-basket-agent/pkg/logger"
)

func init() {
	logx.Init(*configx.MustNew[logx.Config]("LOG"))
}
