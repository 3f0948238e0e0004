// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/tsload/tsload/cmd/tsload"

func main() {
	cmd.Execute()
}
