// Package tunlink programs the host TUN interface: a narrow hook that
// programs addresses and routes onto the host TUN interface via netlink once
// the external DHCPv6 client reports a newly assigned global address. This
// replaces a fixed-delay-before-DAO workaround with an explicit callback —
// the DHCPv6 wire protocol and the TUN device's raw packet I/O are both
// handled by other collaborators and are out of scope here.
package tunlink

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
)

// ops is the slice of the netlink package Glue depends on, kept as an
// interface so tests can substitute a fake kernel instead of requiring
// CAP_NET_ADMIN and a real TUN device.
type ops interface {
	LinkByName(name string) (netlink.Link, error)
	LinkSetUp(link netlink.Link) error
	AddrReplace(link netlink.Link, addr *netlink.Addr) error
	AddrDel(link netlink.Link, addr *netlink.Addr) error
	RouteReplace(route *netlink.Route) error
}

type realOps struct{}

func (realOps) LinkByName(name string) (netlink.Link, error)        { return netlink.LinkByName(name) }
func (realOps) LinkSetUp(link netlink.Link) error                   { return netlink.LinkSetUp(link) }
func (realOps) AddrReplace(link netlink.Link, addr *netlink.Addr) error {
	return netlink.AddrReplace(link, addr)
}
func (realOps) AddrDel(link netlink.Link, addr *netlink.Addr) error { return netlink.AddrDel(link, addr) }
func (realOps) RouteReplace(route *netlink.Route) error             { return netlink.RouteReplace(route) }

// Glue programs one TUN interface in response to address-assignment events.
// Not safe for concurrent use; the single-threaded event loop that owns the
// DHCP hook is its only caller.
type Glue struct {
	linkName string
	ops      ops
}

// New builds a Glue bound to the named TUN interface. The interface itself
// must already exist; tunlink never creates or destroys it.
func New(linkName string) *Glue {
	return &Glue{linkName: linkName, ops: realOps{}}
}

// link resolves the bound interface name to a netlink.Link each call, since
// the kernel index can change across interface recreation.
func (g *Glue) link() (netlink.Link, error) {
	link, err := g.ops.LinkByName(g.linkName)
	if err != nil {
		return nil, fmt.Errorf("tunlink: lookup %s: %w", g.linkName, err)
	}
	return link, nil
}

// OnAddressAssigned programs addr onto the TUN interface and brings the link
// up, the direct replacement for the documented "FIXME: 100ms usleep before
// DAO" workaround: the DHCP client calls this the moment it has a confirmed
// lease instead of the core guessing when the kernel is ready.
func (g *Glue) OnAddressAssigned(addr net.IP, prefixLen int) error {
	link, err := g.link()
	if err != nil {
		return err
	}

	nlAddr := &netlink.Addr{IPNet: &net.IPNet{IP: addr, Mask: net.CIDRMask(prefixLen, 128)}}
	if err := g.ops.AddrReplace(link, nlAddr); err != nil {
		return fmt.Errorf("tunlink: add address %s/%d: %w", addr, prefixLen, err)
	}

	if err := g.ops.LinkSetUp(link); err != nil {
		return fmt.Errorf("tunlink: bring up %s: %w", g.linkName, err)
	}
	return nil
}

// AddRoute installs a route for dst via the TUN interface, used to add the
// RPL default route once a primary parent is selected.
func (g *Glue) AddRoute(dst *net.IPNet, gw net.IP) error {
	link, err := g.link()
	if err != nil {
		return err
	}

	route := &netlink.Route{
		LinkIndex: link.Attrs().Index,
		Dst:       dst,
		Gw:        gw,
	}
	if err := g.ops.RouteReplace(route); err != nil {
		return fmt.Errorf("tunlink: add route to %s: %w", dst, err)
	}
	return nil
}

// RemoveAddress withdraws a previously assigned address, used when the DHCP
// lease expires or is replaced.
func (g *Glue) RemoveAddress(addr net.IP, prefixLen int) error {
	link, err := g.link()
	if err != nil {
		return err
	}

	nlAddr := &netlink.Addr{IPNet: &net.IPNet{IP: addr, Mask: net.CIDRMask(prefixLen, 128)}}
	if err := g.ops.AddrDel(link, nlAddr); err != nil {
		return fmt.Errorf("tunlink: remove address %s/%d: %w", addr, prefixLen, err)
	}
	return nil
}
