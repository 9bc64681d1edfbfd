// Command cvision はCVision APIのサーバー・ワーカー・マイグレーションを起動する。
//
// 使い方:
//
//	cvision [serve|worker|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/cvision/cvision-api/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "cvision: %v\n", err)
		os.Exit(1)
	}
}
