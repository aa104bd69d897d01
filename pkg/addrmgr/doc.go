/*Package addrmgr holds the peers a node knows about but is not necessarily
connected to, and the addresses it refuses to talk to.

AddrBook is a bounded map of ip:port to KnownAddress. Once MaxAddresses entries
are held new keys are dropped, existing entries are never evicted to make room.
BanList remembers banned IPs for BanDuration and forgets them lazily, on the
first check after the window has passed.

Neither type locks. Both belong to the node's event loop, which is the only
goroutine that touches them.
*/
package addrmgr
