/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/zqadmin/ojadmin/cmd"

func main() {
	cmd.Execute()
}
