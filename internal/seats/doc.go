// Package seats apportions council seats from ranked list totals.
//
// Municipal allocation awards a majority premium of half the seats, rounded
// up, to the leading list and distributes the rest by highest averages among
// lists at or above the threshold. Community allocation uses highest
// averages alone. Both functions are pure and all-or-nothing.
package seats
