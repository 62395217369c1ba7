package identity

var animals = []string{
	"Axolotl", "Nudibranch", "Mantis Shrimp", "Leafy Seadragon", "Vampire Squid",
	"Gulper Eel", "Anglerfish", "Blobfish", "Dumbo Octopus", "Frilled Shark",
	"Quokka", "Pangolin", "Aye-aye", "Fossa", "Okapi", "Tapir", "Binturong",
	"Dik-dik", "Saiga", "Numbat", "Bilby", "Quoll", "Tenrec", "Zorilla",
	"Shoebill", "Kakapo", "Hoatzin", "Potoo", "Kiwi", "Secretary Bird",
	"Frogmouth", "Sunbittern", "Honeycreeper", "Bee-eater", "Turaco",
	"Tuatara", "Gharial", "Tokay Gecko", "Glass Frog", "Surinam Toad",
	"Matamata", "Thorny Devil", "Frilled Lizard", "Axanthic",
	"Orchid Mantis", "Goliath Beetle", "Assassin Bug", "Stick Insect",
	"Peacock Spider", "Antlion", "Cicada", "Walkingstick",
	"Fennec", "Caracal", "Serval", "Margay", "Ocelot", "Jaguarundi",
	"Clouded Leopard", "Sand Cat", "Pallas Cat", "Kodkod",
	"Arctic Fox", "Snowy Owl", "Beluga", "Narwhal", "Leopard Seal",
	"Emperor Penguin", "Ptarmigan", "Caribou", "Musk Ox",
	"Echidna", "Wombat", "Wallaby", "Bandicoot", "Potoroo", "Bettong",
	"Antechinus", "Dunnart", "Glider", "Cuscus",
	"Tarsier", "Slow Loris", "Galago", "Indri", "Sifaka", "Langur",
	"Proboscis Monkey", "Uakari", "Tamarin", "Marmoset",
}

// Animals returns a copy of the name pool.
func Animals() []string {
	return append([]string(nil), animals...)
}
