// zknet joins a network and runs its local service
package main

import "zknet/cmd"

func main() {
	cmd.Execute()
}
