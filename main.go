// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/bleepbuild/bleep/cmd/bleep"

func main() {
	cmd.Execute()
}
