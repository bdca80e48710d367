package main

import (
	"shanhu.io/mkdist/mkdistbin"
)

func main() { mkdistbin.Main() }
