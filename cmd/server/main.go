package main

import (
	"github.com/beardcraft/pokering/internal/bootstrap"
)

func main() {
	bootstrap.Run()
}
