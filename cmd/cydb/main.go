// Command cydb is the out-of-core CLI shell: a bufio.Scanner REPL
// grounded on the teacher's root main.go loop, wired to the cydb
// facade instead of a SQL lexer/parser/VM.
package main

import (
	"bufio"
	"cydb"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
)

func main() {
	dir := flag.String("dir", "./cydb-data", "database directory")
	flag.Parse()

	db, err := cydb.Open(*dir, cydb.Options{})
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("db> ")
		if !scanner.Scan() { // Ctrl+D
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(line, "exit") {
			break
		}
		if line == "" {
			continue
		}
		dispatch(db, line)
	}
}

func dispatch(db *cydb.DB, line string) {
	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case "get":
		if len(fields) != 2 {
			fmt.Println("usage: get <key>")
			return
		}
		v, err := db.Get([]byte(fields[1]))
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		fmt.Println(string(v))

	case "set":
		if len(fields) != 3 {
			fmt.Println("usage: set <key> <value>")
			return
		}
		if err := db.Set([]byte(fields[1]), []byte(fields[2])); err != nil {
			fmt.Println("error:", err)
			return
		}
		fmt.Println("ok")

	case "remove", "rm", "del":
		if len(fields) != 2 {
			fmt.Println("usage: remove <key>")
			return
		}
		if err := db.Remove([]byte(fields[1])); err != nil {
			fmt.Println("error:", err)
			return
		}
		fmt.Println("ok")

	case "scan":
		var start, end []byte
		if len(fields) >= 2 {
			start = []byte(fields[1])
		}
		if len(fields) >= 3 {
			end = []byte(fields[2])
		}
		c, err := db.Scan(start, end)
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		defer c.Close()
		for c.Valid() {
			fmt.Printf("%s = %s\n", c.Key(), c.Value())
			if err := c.Next(); err != nil {
				fmt.Println("error:", err)
				return
			}
		}

	default:
		fmt.Println("commands: get <key> | set <key> <value> | remove <key> | scan [start] [end] | exit")
	}
}
