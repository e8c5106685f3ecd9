// Command codeweaver-coreindex is the demonstration binary exercising
// the ambient stack (config loading, CLI, logging) around this module's
// library surface. It is not part of the module's API: the library
// itself never depends on cobra, viper, or a filesystem config file, per
// §1's "accepting an already-resolved settings object" scope.
package main

func main() {
	Execute()
}
