/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/storefront-hq/backoffice/cmd"

func main() {
	cmd.Execute()
}
