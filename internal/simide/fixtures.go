package simide

// WelcomeMessage is the first journal entry of a fresh session.
const WelcomeMessage = "Welcome to Remix (simulated terminal)"

var helpLines = []string{
	"remix.loadgist(id): Load a gist in the file explorer.",
	"remix.loadurl(url): Load the given url in the file explorer. The url can be of type github, swarm, ipfs or raw http",
	"remix.execute(filepath): Run the script specified by file path. If filepath is empty, script currently displayed in the editor is executed.",
	"remix.exeCurrent(): Run the script currently displayed in the editor",
	"remix.help(): Display this help message",
}

var completions = []string{
	"remix.call",
	"remix.exeCurrent",
	"remix.execute",
	"remix.help",
	"remix.loadgist",
	"remix.loadurl",
}

// VMAccounts are the accounts of the in-browser JavaScript VM.
var VMAccounts = []string{
	"0xCA35b7d915458EF540aDe6068dFe2F44E8fa733c",
	"0x14723A09ACff6D2A60DcdF7aA4AFf308FDDC160C",
	"0x4B0897b0513fdC7C541B6d9D7E929C4e5364D2dB",
	"0x583031D1113aD414F02576BD6afaBfb302140225",
	"0xdD870fA1b7C4700F2BD7f44238821C26f7392148",
}

// ProviderAccounts are returned once the Web3 provider is selected.
var ProviderAccounts = []string{
	"0x5B38Da6a701c568545dCfcB03FcB875f56beddC4",
	"0xAb8483F64d9C6d1EcF9b849Ae677dD3315835cb2",
	"0x4B20993Bc481177ec7E8f571ceCaE8A9e22C02db",
}

const ballotSource = `// SPDX-License-Identifier: GPL-3.0

pragma solidity >=0.7.0 <0.9.0;

/**
 * @title Ballot
 * @dev Implements voting process along with vote delegation
 */
contract Ballot {
    struct Voter {
        uint weight;
        bool voted;
        address delegate;
        uint vote;
    }

    address public chairperson;

    mapping(address => Voter) public voters;
}
`

const erc20Source = `// SPDX-License-Identifier: MIT

pragma solidity ^0.8.0;

import "./IERC20.sol";

/**
 * @dev Implementation of the {IERC20} interface.
 */
contract ERC20 is IERC20 {
    mapping(address => uint256) private _balances;
}
`

const erc20BurnableSource = `// SPDX-License-Identifier: MIT

pragma solidity ^0.8.0;

import "../ERC20.sol";

/**
 * @dev Extension of {ERC20} that allows token holders to destroy tokens.
 */
abstract contract ERC20Burnable is ERC20 {
    function burn(uint256 amount) public virtual {}
}
`

// DefaultFiles seeds the workspace of a fresh session.
func DefaultFiles() map[string]string {
	return map[string]string{
		"contracts/3_Ballot.sol": ballotSource,
	}
}

// DefaultRemote is the content contentImport can resolve without network
// access, keyed by URL.
func DefaultRemote() map[string]string {
	const base = "https://github.com/OpenZeppelin/openzeppelin-contracts/blob/master/contracts/token/ERC20/"
	return map[string]string{
		base + "ERC20.sol":                     erc20Source,
		base + "extensions/ERC20Burnable.sol": erc20BurnableSource,
	}
}
