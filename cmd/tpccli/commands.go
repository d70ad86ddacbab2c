package main

import (
	"context"
	"fmt"

	"github.com/veesix-networks/tpc/plugins/northbound/api"
)

func RegisterCommands(tree *CommandTree) {
	tree.AddCommand([]string{"flush"},
		"Remove every flow rule and meter installed by tpc",
		cmdFlush,
	)

	tree.AddCommand([]string{"checking"},
		"Enable or disable slice checking",
		cmdChecking,
		&Argument{Name: "state", Description: "on or off", Values: []string{"on", "off"}},
	)

	tree.AddCommand([]string{"attack"},
		"Install an attack duplication rule",
		cmdAttack,
		&Argument{Name: "device", Description: "Device identifier"},
		&Argument{Name: "src", Description: "IPv4 source to match"},
		&Argument{Name: "dst", Description: "IPv4 destination to match"},
		&Argument{Name: "src-rw", Description: "IPv4 source written on the duplicate"},
		&Argument{Name: "dst-rw", Description: "IPv4 destination written on the duplicate"},
	)

	tree.AddCommand([]string{"slice-id"},
		"Assign a port to a slice",
		cmdSliceID,
		&Argument{Name: "device", Description: "Device identifier"},
		&Argument{Name: "port", Description: "Port number"},
		&Argument{Name: "slice", Description: "Slice identifier, 0-255"},
	)

	tree.AddCommand([]string{"slice-qos"},
		"Set the peak rate of a slice on every device",
		cmdSliceQoS,
		&Argument{Name: "slice", Description: "Slice identifier, 0-255"},
		&Argument{Name: "pir", Description: "Peak information rate in bits per second"},
	)

	tree.AddCommand([]string{"help"},
		"Show available commands",
		cmdHelp,
	)

	tree.AddCommand([]string{"exit"},
		"Leave the shell",
		cmdExit,
	)
}

func cmdFlush(ctx context.Context, cli *CLI, args []string) error {
	if err := cli.client.Flush(ctx); err != nil {
		return err
	}
	cli.printf("Flushed\n")
	return nil
}

func cmdChecking(ctx context.Context, cli *CLI, args []string) error {
	var on bool
	switch args[0] {
	case "on":
		on = true
	case "off":
	default:
		return fmt.Errorf("state must be on or off, got %q", args[0])
	}

	if err := cli.client.Checking(ctx, on); err != nil {
		return err
	}
	cli.printf("Checking %s\n", args[0])
	return nil
}

func cmdAttack(ctx context.Context, cli *CLI, args []string) error {
	row := api.AttackRow{
		DeviceID:            args[0],
		SrcAddress:          args[1],
		DstAddress:          args[2],
		SrcAddressRewritten: args[3],
		DstAddressRewritten: args[4],
	}
	if err := cli.client.AddAttack(ctx, row); err != nil {
		return err
	}
	cli.printf("Attack entry submitted\n")
	return nil
}

func cmdSliceID(ctx context.Context, cli *CLI, args []string) error {
	row := api.SliceIDRow{DeviceID: args[0], PortNumber: args[1], SliceID: args[2]}
	if err := cli.client.AddSliceID(ctx, row); err != nil {
		return err
	}
	cli.printf("Slice id entry submitted\n")
	return nil
}

func cmdSliceQoS(ctx context.Context, cli *CLI, args []string) error {
	row := api.SliceQoSRow{SliceID: args[0], PIR: args[1]}
	if err := cli.client.AddSliceQoS(ctx, row); err != nil {
		return err
	}
	cli.printf("Slice QoS entry submitted\n")
	return nil
}

func cmdHelp(ctx context.Context, cli *CLI, args []string) error {
	cli.tree.ShowHelp(cli.out, "")
	return nil
}

func cmdExit(ctx context.Context, cli *CLI, args []string) error {
	cli.Stop()
	return nil
}
