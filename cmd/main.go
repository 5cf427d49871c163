package main

import (
	"github.com/attr-sampler/cmd/agent"
)

func main() {
	agent.Execute()
}
