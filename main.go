package main

import "github.com/frahmantamala/employee-onboarding/cmd"

func main() {
	cmd.Execute()
}
