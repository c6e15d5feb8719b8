package reading

// Version is the sensord release version.
const Version = "0.1.0"
