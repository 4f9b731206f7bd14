// Command mlu runs declarative chain pipelines and serves trained models.
//
//	mlu run -config pipeline.yaml [-out result.json] [-strict]
//	mlu serve -model model.gob [-addr :8080]
//	mlu version
//
// Environment (also read from ./.env): MLU_LOG_LEVEL (debug, info, warn,
// error) and MLU_ADDR (default listen address for serve).
package main

import (
	"os"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
