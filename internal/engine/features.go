package engine

// lmpFeatureNames maps LMP page 0 feature bits to their spec names.
var lmpFeatureNames = []string{
	"3 slot packets",
	"5 slot packets",
	"Encryption",
	"Slot offset",
	"Timing accuracy",
	"Role switch",
	"Hold mode",
	"Sniff mode",
	"", // previously Park state
	"Power control requests",
	"Channel quality driven data rate (CQDDR)",
	"SCO link",
	"HV2 packets",
	"HV3 packets",
	"u-law log synchronous data",
	"A-law log synchronous data",
	"CVSD synchronous data",
	"Paging parameter negotiation",
	"Power control",
	"Transparent synchronous data",
	"Flow control lag (least significant bit)",
	"Flow control lag (middle bit)",
	"Flow control lag (most significant bit)",
	"Broadcast Encryption",
	"",
	"Enhanced Data Rate ACL 2 Mb/s mode",
	"Enhanced Data Rate ACL 3 Mb/s mode",
	"Enhanced inquiry scan",
	"Interlaced inquiry scan",
	"Interlaced page scan",
	"RSSI with inquiry results",
	"Extended SCO link (EV3 packets)",
	"EV4 packets",
	"EV5 packets",
	"",
	"AFH capable peripheral",
	"AFH classification peripheral",
	"BR/EDR Not Supported",
	"LE Supported (Controller)",
	"3-slot Enhanced Data Rate ACL packets",
	"5-slot Enhanced Data Rate ACL packets",
	"Sniff subrating",
	"Pause encryption",
	"AFH capable central",
	"AFH classification central",
	"Enhanced Data Rate eSCO 2 Mb/s mode",
	"Enhanced Data Rate eSCO 3 Mb/s mode",
	"3-slot Enhanced Data Rate eSCO packets",
	"Extended Inquiry Response",
	"Simultaneous LE and BR/EDR to Same Device Capable (Controller)",
	"",
	"Secure Simple Pairing (Controller Support)",
	"Encapsulated PDU",
	"Erroneous Data Reporting",
	"Non-flushable Packet Boundary Flag",
	"",
	"HCI Link Supervision Timeout Changed event",
	"Variable Inquiry TX Power Level",
	"Enhanced Power Control",
	"",
	"",
	"",
	"",
	"Extended features",
}

// lmpExtFeatureNames maps LMP extended page 1 feature bits.
var lmpExtFeatureNames = []string{
	"Secure Simple Pairing (Host Support)",
	"LE Supported (Host)",
	"",
	"Secure Connections (Host Support)",
}

// llFeatureNames maps LE Link Layer FeatureSet bits (Core Spec Vol 6 Part B).
var llFeatureNames = []string{
	"LE Encryption",
	"Connection Parameters Request procedure",
	"Extended Reject Indication",
	"Peripheral-initiated Features Exchange",
	"LE Ping",
	"LE Data Packet Length Extension",
	"LL Privacy",
	"Extended Scanner Filter Policies",
	"LE 2M PHY",
	"Stable Modulation Index - Transmitter",
	"Stable Modulation Index - Receiver",
	"LE Coded PHY",
	"LE Extended Advertising",
	"LE Periodic Advertising",
	"Channel Selection Algorithm #2",
	"LE Power Class 1",
	"Minimum Number of Used Channels procedure",
	"Connection CTE Request",
	"Connection CTE Response",
	"Connectionless CTE Transmitter",
	"Connectionless CTE Receiver",
	"Antenna Switching During CTE Transmission (AoD)",
	"Antenna Switching During CTE Reception (AoA)",
	"Receiving Constant Tone Extensions",
	"Periodic Advertising Sync Transfer - Sender",
	"Periodic Advertising Sync Transfer - Recipient",
	"Sleep Clock Accuracy Updates",
	"Remote Public Key Validation",
	"Connected Isochronous Stream - Central",
	"Connected Isochronous Stream - Peripheral",
	"Isochronous Broadcaster",
	"Synchronized Receiver",
	"Connected Isochronous Stream (Host Support)",
	"LE Power Control Request",
	"LE Power Control Request",
	"LE Path Loss Monitoring",
	"Periodic Advertising ADI support",
	"Connection Subrating",
	"Connection Subrating (Host Support)",
	"Channel Classification",
}
