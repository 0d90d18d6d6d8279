package main

import "github.com/schooladmin/school-admin/cmd"

func main() {
	cmd.Execute()
}
