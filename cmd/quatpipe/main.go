package main

import "github.com/yuk1kaza/quaternion-3Dvisualizer/internal/cmd"

func main() {
	cmd.Execute()
}
