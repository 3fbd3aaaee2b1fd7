package main

import (
	"github.com/localmart/order/internal/app"
	"github.com/localmart/order/internal/config"
)

func main() {
	config.MustInit()
	app.MustNewApp().Run()
}
