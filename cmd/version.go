package main

// Version is stamped at build time via -ldflags "-X main.Version=...".
var Version = "0.1.0-dev"
