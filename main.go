package main

import "evstudy.dev/zmap/cli"

func main() {
	cli.Handle()
}
